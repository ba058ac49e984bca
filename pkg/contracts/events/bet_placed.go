package events

import "time"

// Emitted by the wagering engine after the stake has been escrowed.
type BetPlaced struct {
	BetID    int64     `json:"bet_id"`
	MatchID  int64     `json:"match_id"`
	UserID   int64     `json:"user_id"`
	TeamName string    `json:"team_name"`
	Amount   int64     `json:"amount"`
	Odds     float64   `json:"odds"`
	Payout   int64     `json:"payout"`
	Ts       time.Time `json:"ts"`
}

// Emitted once per settlement or refund transaction of a match.
type BetsSettled struct {
	MatchID     int64     `json:"match_id"`
	WinningTeam string    `json:"winning_team,omitempty"`
	Settled     int       `json:"settled"`
	PaidOut     int64     `json:"paid_out"`
	Refund      bool      `json:"refund"`
	Ts          time.Time `json:"ts"`
}
