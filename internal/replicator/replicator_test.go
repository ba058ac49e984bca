package replicator

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/matchzy"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

var t0 = time.Date(2025, 5, 10, 21, 0, 0, 0, time.UTC)

type fakeSource struct {
	matches []matchzy.MatchRow
	maps    map[int64]matchzy.MapRow
	players map[int64][]matchzy.PlayerRow
	failOn  int64
}

func (f *fakeSource) MatchesSince(_ context.Context, id int64) ([]matchzy.MatchRow, error) {
	var out []matchzy.MatchRow
	for _, m := range f.matches {
		if m.MatchID > id {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) MapStats(_ context.Context, id int64) (*matchzy.MapRow, error) {
	m, ok := f.maps[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeSource) PlayerStats(_ context.Context, id int64) ([]matchzy.PlayerRow, error) {
	if id == f.failOn {
		return nil, matchzy.ErrUpstream
	}
	return f.players[id], nil
}

type fakeStore struct {
	matches map[int64]match.Match
	players map[int64][]match.PlayerStat
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{matches: map[int64]match.Match{}, players: map[int64][]match.PlayerStat{}}
}

func (s *fakeStore) LastMatchID(context.Context) (int64, error) {
	var max int64
	for id := range s.matches {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (s *fakeStore) InsertMatch(_ context.Context, m match.Match, players []match.PlayerStat) (bool, error) {
	s.inserts++
	if _, ok := s.matches[m.ID]; ok {
		return false, nil
	}
	s.matches[m.ID] = m
	s.players[m.ID] = players
	return true, nil
}

func matchRow(id int64, final1, final2 int) matchzy.MatchRow {
	return matchzy.MatchRow{
		MatchID:    id,
		StartTime:  sql.NullTime{Time: t0, Valid: true},
		Team1Name:  "team_alpha",
		Team1Score: final1,
		Team2Name:  "team_bravo",
		Team2Score: final2,
	}
}

func mapRow(id int64, s1, s2 int) matchzy.MapRow {
	return matchzy.MapRow{
		MatchID:    id,
		StartTime:  sql.NullTime{Time: t0, Valid: true},
		MapName:    "de_inferno",
		Team1Score: s1,
		Team2Score: s2,
	}
}

func lobby(id int64, spectators int) []matchzy.PlayerRow {
	var out []matchzy.PlayerRow
	for i := 0; i < 10; i++ {
		team := "team_alpha"
		if i >= 5 {
			team = "team_bravo"
		}
		out = append(out, matchzy.PlayerRow{
			MatchID:   id,
			SteamID64: 76561198000000000 + int64(i),
			Team:      team,
			Name:      "player",
			Counters:  match.Counters{Kills: 15, Damage: 1800},
		})
	}
	for i := 0; i < spectators; i++ {
		out = append(out, matchzy.PlayerRow{MatchID: id, SteamID64: 76561199000000000 + int64(i), Team: match.TeamSpectator})
	}
	return out
}

func newReplicator(src Source, st Store, published *[]events.MatchReplicated) *Replicator {
	return &Replicator{
		Log:    zap.NewNop(),
		Source: src,
		Store:  st,
		Now:    func() time.Time { return t0.Add(time.Hour) },
		OnReplicated: func(ev events.MatchReplicated) {
			*published = append(*published, ev)
		},
	}
}

func TestReplicateNewMatches(t *testing.T) {
	Convey("Given an upstream with one finished and one running match", t, func() {
		src := &fakeSource{
			matches: []matchzy.MatchRow{matchRow(1, 0, 0), matchRow(2, 0, 0)},
			maps:    map[int64]matchzy.MapRow{1: mapRow(1, 13, 8), 2: mapRow(2, 5, 4)},
			players: map[int64][]matchzy.PlayerRow{1: lobby(1, 2), 2: lobby(2, 0)},
		}
		store := newFakeStore()
		var published []events.MatchReplicated
		r := newReplicator(src, store, &published)

		Convey("When a cycle runs", func() {
			n, err := r.ReplicateNewMatches(context.Background())

			Convey("Then only the finished match is copied without spectators", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(store.matches, ShouldContainKey, int64(1))
				So(store.matches, ShouldNotContainKey, int64(2))
				So(len(store.players[1]), ShouldEqual, 10)
				So(store.matches[1].Winner, ShouldEqual, "team_alpha")
				So(store.matches[1].EndTime, ShouldEqual, t0.Add(time.Hour))
				So(len(published), ShouldEqual, 1)
			})

			Convey("And the same cycle runs again with no new data", func() {
				n2, err := r.ReplicateNewMatches(context.Background())

				Convey("Then nothing new is written", func() {
					So(err, ShouldBeNil)
					So(n2, ShouldEqual, 0)
					So(len(store.matches), ShouldEqual, 1)
					So(len(published), ShouldEqual, 1)
				})
			})

			Convey("And the running match finishes", func() {
				src.maps[2] = mapRow(2, 11, 13)
				n2, err := r.ReplicateNewMatches(context.Background())

				Convey("Then it is picked up on the next poll", func() {
					So(err, ShouldBeNil)
					So(n2, ShouldEqual, 1)
					So(store.matches[2].Winner, ShouldEqual, "team_bravo")
				})
			})
		})
	})

	Convey("Given a match that was already replicated", t, func() {
		src := &fakeSource{
			matches: []matchzy.MatchRow{matchRow(5, 1, 0)},
			maps:    map[int64]matchzy.MapRow{5: mapRow(5, 13, 3)},
			players: map[int64][]matchzy.PlayerRow{5: lobby(5, 0)},
		}
		store := newFakeStore()
		var published []events.MatchReplicated
		r := newReplicator(src, store, &published)

		_, err := r.ReplicateNewMatches(context.Background())
		So(err, ShouldBeNil)

		Convey("When the upstream replays it below the watermark", func() {
			_, err := r.replicateOne(context.Background(), src.matches[0])

			Convey("Then no duplicate is created", func() {
				So(err, ShouldBeNil)
				So(len(store.matches), ShouldEqual, 1)
				So(store.inserts, ShouldEqual, 2)
				So(len(published), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a player fetch that fails in the middle of a batch", t, func() {
		src := &fakeSource{
			matches: []matchzy.MatchRow{matchRow(1, 1, 0), matchRow(2, 1, 0), matchRow(3, 1, 0)},
			maps:    map[int64]matchzy.MapRow{1: mapRow(1, 13, 2), 2: mapRow(2, 13, 2), 3: mapRow(3, 13, 2)},
			players: map[int64][]matchzy.PlayerRow{1: lobby(1, 0), 2: lobby(2, 0), 3: lobby(3, 0)},
			failOn:  2,
		}
		store := newFakeStore()
		var published []events.MatchReplicated
		r := newReplicator(src, store, &published)

		n, err := r.ReplicateNewMatches(context.Background())

		Convey("Then the batch stops before the failed match", func() {
			So(errors.Is(err, matchzy.ErrUpstream), ShouldBeTrue)
			So(n, ShouldEqual, 1)
			So(store.matches, ShouldNotContainKey, int64(3))
		})

		Convey("Then the failed match is retried once the source recovers", func() {
			src.failOn = 0
			n, err := r.ReplicateNewMatches(context.Background())
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(len(store.matches), ShouldEqual, 3)
		})
	})

	Convey("Given a match without map stats", t, func() {
		src := &fakeSource{
			matches: []matchzy.MatchRow{matchRow(9, 0, 0)},
			maps:    map[int64]matchzy.MapRow{},
		}
		store := newFakeStore()
		var published []events.MatchReplicated
		r := newReplicator(src, store, &published)

		n, err := r.ReplicateNewMatches(context.Background())

		Convey("Then it is deferred, not failed", func() {
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(store.inserts, ShouldEqual, 0)
		})
	})
}

func TestBuildMatch(t *testing.T) {
	Convey("Given rows with recorded end times and winners", t, func() {
		row := matchRow(3, 1, 0)
		row.EndTime = sql.NullTime{Time: t0.Add(50 * time.Minute), Valid: true}
		row.Winner = sql.NullString{String: "team_bravo", Valid: true}
		mr := mapRow(3, 13, 10)

		Convey("When only the match row has them", func() {
			m, err := BuildMatch(row, mr, t0.Add(2*time.Hour))
			So(err, ShouldBeNil)
			So(m.EndTime, ShouldEqual, t0.Add(50*time.Minute))
			So(m.Winner, ShouldEqual, "team_bravo")
		})

		Convey("When the map row has them too", func() {
			mr.EndTime = sql.NullTime{Time: t0.Add(45 * time.Minute), Valid: true}
			mr.Winner = sql.NullString{String: "team_alpha", Valid: true}
			m, err := BuildMatch(row, mr, t0.Add(2*time.Hour))
			So(err, ShouldBeNil)
			So(m.EndTime, ShouldEqual, t0.Add(45*time.Minute))
			So(m.Winner, ShouldEqual, "team_alpha")
		})
	})
}
