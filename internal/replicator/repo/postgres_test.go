package repo

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/shared/dbtest"
)

func TestInsertMatchPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	store := NewPostgres(conn)

	start := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	m, err := match.NewMatch(12, "de_inferno", start, start.Add(40*time.Minute),
		match.Team{Name: "team_alpha", Score: 13}, match.Team{Name: "team_bravo", Score: 9}, "team_alpha")
	if err != nil {
		t.Fatal(err)
	}
	players := []match.PlayerStat{
		{MatchID: 12, SteamID64: 2, Name: "b", Team: "team_bravo", Counters: match.Counters{Kills: 11, Damage: 1900}},
		{MatchID: 12, SteamID64: 1, Name: "a", Team: "team_alpha", Counters: match.Counters{Kills: 25, Damage: 3100, Enemy5Ks: 1}},
	}

	Convey("Given an empty canonical store", t, func() {
		w0, err := store.LastMatchID(ctx)
		So(err, ShouldBeNil)
		So(w0, ShouldEqual, 0)

		first, err := store.InsertMatch(ctx, m, players)
		So(err, ShouldBeNil)
		So(first, ShouldBeTrue)

		changed := m
		changed.Winner = "team_bravo"
		second, err := store.InsertMatch(ctx, changed, players[:1])
		So(err, ShouldBeNil)
		So(second, ShouldBeFalse)

		w1, err := store.LastMatchID(ctx)
		So(err, ShouldBeNil)
		So(w1, ShouldEqual, 12)

		got, err := store.Match(ctx, 12)
		So(err, ShouldBeNil)
		So(got.Winner, ShouldEqual, "team_alpha")
		So(got.StartTime.Equal(start), ShouldBeTrue)

		rows, err := store.Players(ctx, 12)
		So(err, ShouldBeNil)
		So(len(rows), ShouldEqual, 2)
		So(rows[0].SteamID64, ShouldEqual, 1)
		So(rows[0].Enemy5Ks, ShouldEqual, 1)
	})
}
