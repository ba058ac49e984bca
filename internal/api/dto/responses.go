package dto

import (
	"time"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/match"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type PlaceBetResponse struct {
	BetID   int64  `json:"bet_id"`
	MatchID int64  `json:"match_id"`
	Status  string `json:"status"` // ACTIVE
}

type PointsResponse struct {
	UserID  int64          `json:"user_id"`
	Balance int64          `json:"balance"`
	History []ledger.Entry `json:"history"`
}

type TransferResponse struct {
	From        int64 `json:"from"`
	To          int64 `json:"to"`
	Amount      int64 `json:"amount"`
	FromBalance int64 `json:"from_balance"`
	ToBalance   int64 `json:"to_balance"`
}

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type MatchBetsResult struct {
	MatchID int64 `json:"match_id"`
	Bets    int   `json:"bets"`
}

type ReconcileResponse struct {
	Consistent bool           `json:"consistent"`
	Drift      []ledger.Drift `json:"drift"`
}

type MatchResponse struct {
	MatchID    int64            `json:"match_id"`
	MapName    string           `json:"map_name"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	Team1Name  string           `json:"team1_name"`
	Team1Score int              `json:"team1_score"`
	Team2Name  string           `json:"team2_name"`
	Team2Score int              `json:"team2_score"`
	Winner     string           `json:"winner"`
	Players    []PlayerResponse `json:"players"`
}

type PlayerResponse struct {
	SteamID64 int64  `json:"steamid64"`
	Name      string `json:"name"`
	Team      string `json:"team"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	Assists   int    `json:"assists"`
	Damage    int    `json:"damage"`
	HSKills   int    `json:"head_shot_kills"`
}

func NewMatchResponse(m match.Match, players []match.PlayerStat) MatchResponse {
	out := MatchResponse{
		MatchID:    m.ID,
		MapName:    m.MapName,
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
		Team1Name:  m.Team1Name,
		Team1Score: m.Team1Score,
		Team2Name:  m.Team2Name,
		Team2Score: m.Team2Score,
		Winner:     m.Winner,
		Players:    make([]PlayerResponse, 0, len(players)),
	}
	for _, p := range players {
		out.Players = append(out.Players, PlayerResponse{
			SteamID64: p.SteamID64,
			Name:      p.Name,
			Team:      p.Team,
			Kills:     p.Kills,
			Deaths:    p.Deaths,
			Assists:   p.Assists,
			Damage:    p.Damage,
			HSKills:   p.HeadShotKills,
		})
	}
	return out
}
