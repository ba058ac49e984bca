// Package wagering escrows stakes at bet time and settles a match's bets in one
// transaction.
package wagering

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidBet          = errors.New("invalid bet")
	ErrClosedMarket        = errors.New("betting is closed for this match")
	ErrInvalidTeam         = errors.New("team is not playing in this match")
	ErrBetAgainstOwnTeam   = errors.New("cannot bet against your own team")
	ErrNoActiveMarket      = errors.New("no match is open for betting")
)

// Bet is created active and flipped inactive exactly once, by settlement or refund
type Bet struct {
	ID        int64      `db:"id" json:"id"`
	MatchID   int64      `db:"match_id" json:"match_id"`
	DiscordID int64      `db:"discord_id" json:"user_id"`
	Amount    int64      `db:"amount" json:"amount"`
	TeamName  string     `db:"team_name" json:"team_name"`
	Odds      float64    `db:"odds" json:"odds"`
	Payout    int64      `db:"payout" json:"payout"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SettledAt *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

type PlaceBetRequest struct {
	MatchID  int64
	UserID   int64
	Amount   int64
	TeamName string
	Odds     float64
}

func (r PlaceBetRequest) Validate() error {
	switch {
	case r.MatchID <= 0:
		return fmt.Errorf("%w: match id %d", ErrInvalidBet, r.MatchID)
	case r.UserID <= 0:
		return fmt.Errorf("%w: user id %d", ErrInvalidBet, r.UserID)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidBet)
	case strings.TrimSpace(r.TeamName) == "":
		return fmt.Errorf("%w: team is required", ErrInvalidBet)
	case !(r.Odds > 0 && r.Odds < 1):
		return fmt.Errorf("%w: odds %v outside (0, 1)", ErrInvalidBet, r.Odds)
	}
	return nil
}

// Payout is floor(amount / odds), taken on the exact decimal quotient
func Payout(amount int64, odds float64) int64 {
	q, _ := decimal.NewFromInt(amount).QuoRem(decimal.NewFromFloat(odds), 0)
	return q.IntPart()
}

// SettleResult describes one settlement or refund pass over a match's bets
type SettleResult struct {
	Settled int
	Won     int
	Lost    int
	PaidOut int64
	// AlreadyInactive were found inactive when loaded
	AlreadyInactive []int64
	// Anomalies were active when locked but could not be flipped; never paid
	Anomalies []int64
}
