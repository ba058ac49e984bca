// Package match holds the canonical records of a completed inhouse match.
package match

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TeamSpectator is the team MatchZy records for casters and spectators in the lobby.
const TeamSpectator = "Spectator"

// ExpectedPlayers is the lobby size of a regular 5v5 match.
const ExpectedPlayers = 10

var ErrInvalidRecord = errors.New("invalid match record")

// Team is one side of a match with its final round count.
type Team struct {
	Name  string
	Score int
}

// Match is immutable once inserted; match_id is the upstream identifier.
type Match struct {
	ID         int64     `db:"match_id"`
	StartTime  time.Time `db:"start_time"`
	EndTime    time.Time `db:"end_time"`
	Winner     string    `db:"winner"`
	MapName    string    `db:"map_name"`
	Team1Name  string    `db:"team1_name"`
	Team1Score int       `db:"team1_score"`
	Team2Name  string    `db:"team2_name"`
	Team2Score int       `db:"team2_score"`
}

func NewMatch(id int64, mapName string, start, end time.Time, team1, team2 Team, winner string) (Match, error) {
	switch {
	case id <= 0:
		return Match{}, fmt.Errorf("%w: match id %d", ErrInvalidRecord, id)
	case strings.TrimSpace(mapName) == "":
		return Match{}, fmt.Errorf("%w: match %d has no map", ErrInvalidRecord, id)
	case team1.Name == "" || team2.Name == "":
		return Match{}, fmt.Errorf("%w: match %d is missing a team name", ErrInvalidRecord, id)
	case winner == "":
		return Match{}, fmt.Errorf("%w: match %d has no winner", ErrInvalidRecord, id)
	case team1.Score < 0 || team2.Score < 0:
		return Match{}, fmt.Errorf("%w: match %d has a negative score", ErrInvalidRecord, id)
	case start.IsZero():
		return Match{}, fmt.Errorf("%w: match %d has no start time", ErrInvalidRecord, id)
	}
	if end.Before(start) {
		end = start
	}
	return Match{
		ID:         id,
		StartTime:  start,
		EndTime:    end,
		Winner:     winner,
		MapName:    mapName,
		Team1Name:  team1.Name,
		Team1Score: team1.Score,
		Team2Name:  team2.Name,
		Team2Score: team2.Score,
	}, nil
}

// Counters are the raw per-player numbers used for awards and odds.
type Counters struct {
	Kills          int `db:"kills"`
	Deaths         int `db:"deaths"`
	Assists        int `db:"assists"`
	Damage         int `db:"damage"`
	HeadShotKills  int `db:"head_shot_kills"`
	UtilityDamage  int `db:"utility_damage"`
	EnemiesFlashed int `db:"enemies_flashed"`
	Enemy5Ks       int `db:"enemy5ks"`
	Enemy4Ks       int `db:"enemy4ks"`
	Enemy3Ks       int `db:"enemy3ks"`
	Enemy2Ks       int `db:"enemy2ks"`
	V1Count        int `db:"v1_count"`
	V1Wins         int `db:"v1_wins"`
	V2Count        int `db:"v2_count"`
	V2Wins         int `db:"v2_wins"`
	EntryCount     int `db:"entry_count"`
	EntryWins      int `db:"entry_wins"`
}

func (c Counters) valid() bool {
	for _, v := range []int{
		c.Kills, c.Deaths, c.Assists, c.Damage, c.HeadShotKills, c.UtilityDamage, c.EnemiesFlashed,
		c.Enemy5Ks, c.Enemy4Ks, c.Enemy3Ks, c.Enemy2Ks,
		c.V1Count, c.V1Wins, c.V2Count, c.V2Wins, c.EntryCount, c.EntryWins,
	} {
		if v < 0 {
			return false
		}
	}
	return true
}

// PlayerStat is one row per (match, steamid64).
type PlayerStat struct {
	MatchID   int64  `db:"match_id"`
	SteamID64 int64  `db:"steamid64"`
	Name      string `db:"name"`
	Team      string `db:"team"`
	Counters
}

func NewPlayerStat(matchID, steamID64 int64, name, team string, c Counters) (PlayerStat, error) {
	switch {
	case matchID <= 0:
		return PlayerStat{}, fmt.Errorf("%w: player match id %d", ErrInvalidRecord, matchID)
	case steamID64 <= 0:
		return PlayerStat{}, fmt.Errorf("%w: match %d player without steamid64", ErrInvalidRecord, matchID)
	case team == "":
		return PlayerStat{}, fmt.Errorf("%w: match %d player %d without team", ErrInvalidRecord, matchID, steamID64)
	case !c.valid():
		return PlayerStat{}, fmt.Errorf("%w: match %d player %d has negative counters", ErrInvalidRecord, matchID, steamID64)
	}
	return PlayerStat{MatchID: matchID, SteamID64: steamID64, Name: name, Team: team, Counters: c}, nil
}

// IsSpectator reports whether the row belongs to someone who did not play.
func (p PlayerStat) IsSpectator() bool { return p.Team == TeamSpectator }
