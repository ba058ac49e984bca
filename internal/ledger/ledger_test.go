package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/radieske/inhouse-points/internal/shared/dbtest"
)

func TestValidateReward(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		reason string
		want   error
	}{
		{"reward", 500, "won the tournament", nil},
		{"penalty", -50, "rule violation", nil},
		{"upper bound", MaxAdjustment, "x", nil},
		{"lower bound", -MaxAdjustment, "x", nil},
		{"zero", 0, "x", ErrInvalidAmount},
		{"too large", MaxAdjustment + 1, "x", ErrInvalidAmount},
		{"too small", -MaxAdjustment - 1, "x", ErrInvalidAmount},
		{"empty reason", 10, "   ", ErrInvalidReason},
		{"long reason", 10, strings.Repeat("a", MaxReasonLen+1), ErrInvalidReason},
		{"long multibyte reason within runes", 10, strings.Repeat("é", MaxReasonLen), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReward(tc.amount, tc.reason)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateTransfer(t *testing.T) {
	Convey("Given a gift between users", t, func() {
		So(ValidateTransfer(1, 2, 100), ShouldBeNil)
		So(errors.Is(ValidateTransfer(1, 2, 0), ErrInvalidAmount), ShouldBeTrue)
		So(errors.Is(ValidateTransfer(1, 2, -5), ErrInvalidAmount), ShouldBeTrue)
		So(errors.Is(ValidateTransfer(1, 2, MaxAdjustment+1), ErrInvalidAmount), ShouldBeTrue)
		So(errors.Is(ValidateTransfer(7, 7, 10), ErrSelfTransfer), ShouldBeTrue)
	})
}

func TestStorePostgres(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	s := NewStore(conn)

	Convey("Given users with operator rewards", t, func() {
		_, err := conn.ExecContext(ctx, `TRUNCATE points, point_balances RESTART IDENTITY`)
		So(err, ShouldBeNil)

		b, err := s.Reward(ctx, 1, 1000, "seed")
		So(err, ShouldBeNil)
		So(b, ShouldEqual, 1000)
		_, err = s.Reward(ctx, 2, 300, "seed")
		So(err, ShouldBeNil)

		Convey("When points are transferred and penalties applied", func() {
			from, to, err := s.Transfer(ctx, 1, 2, 400)
			So(err, ShouldBeNil)
			So(from, ShouldEqual, 600)
			So(to, ShouldEqual, 700)

			_, err = s.Reward(ctx, 2, -100, "penalty")
			So(err, ShouldBeNil)

			Convey("Then the cache equals the ledger sum for everyone", func() {
				drift, err := s.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(drift, ShouldBeEmpty)

				b1, _ := s.Balance(ctx, 1)
				b2, _ := s.Balance(ctx, 2)
				So(b1, ShouldEqual, 600)
				So(b2, ShouldEqual, 600)
			})

			Convey("Then history is newest first", func() {
				h, err := s.History(ctx, 2, 10)
				So(err, ShouldBeNil)
				So(len(h), ShouldEqual, 3)
				So(h[0].Change, ShouldEqual, -100)
				So(h[0].Category, ShouldEqual, CategoryAdmin)
			})

			Convey("Then the leaderboard orders by balance", func() {
				lb, err := s.Leaderboard(ctx, 10)
				So(err, ShouldBeNil)
				So(len(lb), ShouldEqual, 2)
				So(lb[0].DiscordID, ShouldEqual, 1)
			})
		})

		Convey("When a gift exceeds the sender's balance", func() {
			_, _, err := s.Transfer(ctx, 2, 1, 301)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, ErrInsufficientBalance), ShouldBeTrue)
				h, _ := s.History(ctx, 2, 10)
				So(len(h), ShouldEqual, 1)
			})
		})

		Convey("When opposite transfers race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(2)
				go func() { defer wg.Done(); _, _, _ = s.Transfer(ctx, 1, 2, 10) }()
				go func() { defer wg.Done(); _, _, _ = s.Transfer(ctx, 2, 1, 10) }()
			}
			wg.Wait()

			Convey("Then no deadlock or drift occurs and total points are conserved", func() {
				drift, err := s.Reconcile(ctx)
				So(err, ShouldBeNil)
				So(drift, ShouldBeEmpty)
				b1, _ := s.Balance(ctx, 1)
				b2, _ := s.Balance(ctx, 2)
				So(b1+b2, ShouldEqual, 1300)
			})
		})
	})

	Convey("Given an unknown user", t, func() {
		b, err := s.Balance(ctx, 999)
		So(err, ShouldBeNil)
		So(b, ShouldEqual, 0)
	})
}
