package matchzy

import (
	"database/sql"

	"github.com/radieske/inhouse-points/internal/match"
)

// MatchRow mirrors matchzy_stats_matches. end_time and winner are frequently left
// unset by the plugin, and the series scores stay 0 until the series ends.
type MatchRow struct {
	MatchID    int64          `db:"matchid"`
	StartTime  sql.NullTime   `db:"start_time"`
	EndTime    sql.NullTime   `db:"end_time"`
	Winner     sql.NullString `db:"winner"`
	Team1Name  string         `db:"team1_name"`
	Team1Score int            `db:"team1_score"`
	Team2Name  string         `db:"team2_name"`
	Team2Score int            `db:"team2_score"`
}

func (r MatchRow) Final() match.Scores {
	return match.Scores{Team1: r.Team1Score, Team2: r.Team2Score}
}

// MapRow mirrors matchzy_stats_maps; the round scores are updated live during the map.
type MapRow struct {
	MatchID    int64          `db:"matchid"`
	MapNumber  int            `db:"mapnumber"`
	StartTime  sql.NullTime   `db:"start_time"`
	EndTime    sql.NullTime   `db:"end_time"`
	Winner     sql.NullString `db:"winner"`
	MapName    string         `db:"mapname"`
	Team1Score int            `db:"team1_score"`
	Team2Score int            `db:"team2_score"`
}

func (r MapRow) Scores() match.Scores {
	return match.Scores{Team1: r.Team1Score, Team2: r.Team2Score}
}

// PlayerRow mirrors the subset of matchzy_stats_players the ledger and odds use.
type PlayerRow struct {
	MatchID   int64  `db:"matchid"`
	SteamID64 int64  `db:"steamid64"`
	Team      string `db:"team"`
	Name      string `db:"name"`
	match.Counters
}

// ToStat validates the row into a canonical PlayerStat.
func (r PlayerRow) ToStat() (match.PlayerStat, error) {
	return match.NewPlayerStat(r.MatchID, r.SteamID64, r.Name, r.Team, r.Counters)
}

// Winner picks the map winner, then the match winner, then the team leading on the map.
// MatchZy often leaves both winner columns empty.
func Winner(row MatchRow, mapRow MapRow) string {
	switch {
	case mapRow.Winner.Valid && mapRow.Winner.String != "":
		return mapRow.Winner.String
	case row.Winner.Valid && row.Winner.String != "":
		return row.Winner.String
	case mapRow.Team1Score > mapRow.Team2Score:
		return row.Team1Name
	default:
		return row.Team2Name
	}
}
