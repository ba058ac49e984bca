package repo

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/radieske/inhouse-points/internal/match"
	replrepo "github.com/radieske/inhouse-points/internal/replicator/repo"
	"github.com/radieske/inhouse-points/internal/shared/dbtest"
)

func TestRatingsPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	matches := replrepo.NewPostgres(conn)

	// three 10-round matches: player 1 does 1000, 2000, 3000 damage; player 2 plays only the last
	start := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		m, err := match.NewMatch(i, "de_dust2", start, start,
			match.Team{Name: "a", Score: 7}, match.Team{Name: "b", Score: 3}, "a")
		if err != nil {
			t.Fatal(err)
		}
		players := []match.PlayerStat{{MatchID: i, SteamID64: 1, Team: "a", Counters: match.Counters{Damage: int(i) * 1000}}}
		if i == 3 {
			players = append(players, match.PlayerStat{MatchID: i, SteamID64: 2, Team: "b", Counters: match.Counters{Damage: 500}})
		}
		if _, err := matches.InsertMatch(ctx, m, players); err != nil {
			t.Fatal(err)
		}
	}

	Convey("Given stored player history", t, func() {
		ratings, err := NewPostgres(conn, 2).Ratings(ctx, []int64{1, 2, 3})
		So(err, ShouldBeNil)

		Convey("Then ADR averages the most recent window", func() {
			So(ratings[1].ADR, ShouldAlmostEqual, 250.0)
			So(ratings[1].Matches, ShouldEqual, 2)
			So(ratings[2].ADR, ShouldAlmostEqual, 50.0)
			So(ratings[2].Matches, ShouldEqual, 1)
		})

		Convey("Then players without history are absent", func() {
			_, ok := ratings[3]
			So(ok, ShouldBeFalse)
		})

		Convey("Then the population average covers every row", func() {
			pop, err := NewPostgres(conn, 2).PopulationADR(ctx)
			So(err, ShouldBeNil)
			So(pop, ShouldAlmostEqual, (100.0+200.0+300.0+50.0)/4)
		})
	})
}
