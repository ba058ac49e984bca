package events

import "time"

// Live match states, in order.
const (
	LiveAnnounced     = "ANNOUNCED"
	LiveAwaitingStart = "AWAITING_START"
	LiveInProgress    = "IN_PROGRESS"
	LiveCompleted     = "COMPLETED"
)

// Payload broadcast on the live match Redis channel and relayed to websocket clients.
type LiveMatchUpdate struct {
	SessionID     string     `json:"session_id"`
	State         string     `json:"state"`
	MatchID       int64      `json:"match_id"`
	MapName       string     `json:"map_name,omitempty"`
	MapSide       string     `json:"map_side,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	TeamNames     [2]string  `json:"team_names"`
	Odds          [2]float64 `json:"odds"`
	Scores        [2]int     `json:"scores"`
	BetTotals     [2]int64   `json:"bet_totals"`
	BettingLocked bool       `json:"betting_locked"`
	Winner        string     `json:"winner,omitempty"`
	Restarted     bool       `json:"restarted,omitempty"`
	Ts            time.Time  `json:"ts"`
}
