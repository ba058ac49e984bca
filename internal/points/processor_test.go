package points

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/users"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

var defaultFormula = Formula{Base: 1000, WinBonus: 250, KillMultiplier: 10, DamageDivisor: 10}

type fakeStore struct {
	matches   []match.Match
	players   map[int64][]match.PlayerStat
	markers   map[int64]bool
	entries   []ledger.Entry
	commitErr error
}

func (s *fakeStore) UnprocessedMatches(context.Context) ([]match.Match, error) {
	var out []match.Match
	for _, m := range s.matches {
		if !s.markers[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) Players(_ context.Context, id int64) ([]match.PlayerStat, error) {
	return s.players[id], nil
}

func (s *fakeStore) Commit(_ context.Context, source string, id int64, entries []ledger.Entry) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	if source != ledger.SourceMatches {
		return errors.New("unexpected source " + source)
	}
	if s.markers[id] {
		return ErrAlreadyProcessed
	}
	s.markers[id] = true
	s.entries = append(s.entries, entries...)
	return nil
}

type fakeDirectory map[int64]int64

func (d fakeDirectory) ResolveSteamID(_ context.Context, steam int64) (int64, error) {
	if id, ok := d[steam]; ok {
		return id, nil
	}
	return 0, users.ErrUnresolvedIdentity
}

var start = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func completed(id int64) match.Match {
	return match.Match{
		ID: id, StartTime: start, EndTime: start.Add(40 * time.Minute), Winner: "team_alpha",
		MapName: "de_mirage", Team1Name: "team_alpha", Team1Score: 13, Team2Name: "team_bravo", Team2Score: 9,
	}
}

func roster(id int64, base int64) []match.PlayerStat {
	var out []match.PlayerStat
	for i := int64(0); i < 10; i++ {
		team := "team_alpha"
		if i >= 5 {
			team = "team_bravo"
		}
		out = append(out, match.PlayerStat{
			MatchID: id, SteamID64: base + i, Team: team,
			Counters: match.Counters{Kills: 20, Damage: 2345},
		})
	}
	return out
}

func directoryFor(base int64) fakeDirectory {
	d := fakeDirectory{}
	for i := int64(0); i < 10; i++ {
		d[base+i] = 1000 + i
	}
	return d
}

func TestFormula(t *testing.T) {
	cases := []struct {
		name   string
		team   string
		kills  int
		damage int
		want   int64
	}{
		{"winner", "team_alpha", 20, 2345, 1000 + 250 + 200 + 234},
		{"loser", "team_bravo", 20, 2345, 1000 + 200 + 234},
		{"no impact", "team_bravo", 0, 9, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := match.PlayerStat{Team: tc.team, Counters: match.Counters{Kills: tc.kills, Damage: tc.damage}}
			if got := defaultFormula.Award(p, "team_alpha"); got != tc.want {
				t.Fatalf("award = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProcessNewPointEvents(t *testing.T) {
	Convey("Given two completed matches with linked players", t, func() {
		store := &fakeStore{
			matches: []match.Match{completed(1), completed(2)},
			players: map[int64][]match.PlayerStat{1: roster(1, 100), 2: roster(2, 100)},
			markers: map[int64]bool{},
		}
		var published []events.PointsAwarded
		p := &Processor{
			Log:       zap.NewNop(),
			Store:     store,
			Directory: directoryFor(100),
			Formula:   defaultFormula,
			OnAwarded: func(ev events.PointsAwarded) { published = append(published, ev) },
		}

		Convey("When the processor runs twice", func() {
			n1, err1 := p.ProcessNewPointEvents(context.Background())
			n2, err2 := p.ProcessNewPointEvents(context.Background())

			Convey("Then each match is awarded exactly once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(n1, ShouldEqual, 2)
				So(n2, ShouldEqual, 0)
				So(len(store.entries), ShouldEqual, 20)
				So(len(published), ShouldEqual, 2)
			})

			Convey("Then entries carry the match as their source", func() {
				e := store.entries[0]
				So(e.Category, ShouldEqual, ledger.CategoryCS2)
				So(e.Reason, ShouldEqual, "Played CS2")
				So(e.EventSource, ShouldEqual, ledger.SourceMatches)
				So(*e.EventSourceID, ShouldEqual, 1)
				So(e.CreatedAt, ShouldEqual, start)
				So(e.Change, ShouldEqual, 1684)
			})
		})

		Convey("When one player of the first match is not linked", func() {
			store.players[1][3].SteamID64 = 999

			n, err := p.ProcessNewPointEvents(context.Background())

			Convey("Then none of that match's players are awarded", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(store.markers[1], ShouldBeFalse)
				for _, e := range store.entries {
					So(*e.EventSourceID, ShouldEqual, 2)
				}
			})

			Convey("Then the match is awarded once the player is linked", func() {
				p.Directory.(fakeDirectory)[999] = 5555
				n, err := p.ProcessNewPointEvents(context.Background())
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(store.markers[1], ShouldBeTrue)
				So(len(store.entries), ShouldEqual, 20)
			})
		})

		Convey("When another worker committed the marker first", func() {
			store.commitErr = ErrAlreadyProcessed
			n, err := p.ProcessNewPointEvents(context.Background())

			Convey("Then nothing is counted or published", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(published, ShouldBeEmpty)
			})
		})

		Convey("When commits fail", func() {
			store.commitErr = errors.New("connection refused")
			n, err := p.ProcessNewPointEvents(context.Background())

			Convey("Then every match is still attempted and the error reported", func() {
				So(n, ShouldEqual, 0)
				So(err, ShouldNotBeNil)
				So(store.markers, ShouldBeEmpty)
			})
		})
	})
}
