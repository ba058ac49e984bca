package events

import "time"

// Published after a completed match has been copied into the canonical store.
type MatchReplicated struct {
	MatchID    int64     `json:"match_id"`
	MapName    string    `json:"map_name"`
	Team1Name  string    `json:"team1_name"`
	Team1Score int       `json:"team1_score"`
	Team2Name  string    `json:"team2_name"`
	Team2Score int       `json:"team2_score"`
	Winner     string    `json:"winner"`
	Players    int       `json:"players"`
	Ts         time.Time `json:"ts"`
}

// Published after the ledger entries of a match were committed.
type PointsAwarded struct {
	MatchID int64           `json:"match_id"`
	Awards  map[int64]int64 `json:"awards"` // discord id -> points
	Ts      time.Time       `json:"ts"`
}
