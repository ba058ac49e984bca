package matchzy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrUpstream marks failures talking to the game server database; callers retry next poll.
var ErrUpstream = errors.New("upstream match source")

// MySQL is the read-only MatchZy statistics database. It never writes.
type MySQL struct{ db *sqlx.DB }

func NewMySQL(db *sqlx.DB) *MySQL { return &MySQL{db: db} }

// MatchesSince returns every match with id strictly greater than id, oldest first
func (m *MySQL) MatchesSince(ctx context.Context, id int64) ([]MatchRow, error) {
	const q = `
		SELECT matchid, start_time, end_time, winner, team1_name, team1_score, team2_name, team2_score
		FROM matchzy_stats_matches
		WHERE matchid > ?
		ORDER BY matchid`
	var out []MatchRow
	if err := m.db.SelectContext(ctx, &out, q, id); err != nil {
		return nil, fmt.Errorf("%w: matches since %d: %w", ErrUpstream, id, err)
	}
	return out, nil
}

// Match returns one match row, nil when the id does not exist yet
func (m *MySQL) Match(ctx context.Context, id int64) (*MatchRow, error) {
	const q = `
		SELECT matchid, start_time, end_time, winner, team1_name, team1_score, team2_name, team2_score
		FROM matchzy_stats_matches
		WHERE matchid = ?`
	var r MatchRow
	if err := m.db.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: match %d: %w", ErrUpstream, id, err)
	}
	return &r, nil
}

// MapStats returns the latest map of a match, nil when the map row has not been written
func (m *MySQL) MapStats(ctx context.Context, matchID int64) (*MapRow, error) {
	const q = `
		SELECT matchid, mapnumber, start_time, end_time, winner, mapname, team1_score, team2_score
		FROM matchzy_stats_maps
		WHERE matchid = ?
		ORDER BY mapnumber DESC
		LIMIT 1`
	var r MapRow
	if err := m.db.GetContext(ctx, &r, q, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: map stats %d: %w", ErrUpstream, matchID, err)
	}
	return &r, nil
}

func (m *MySQL) PlayerStats(ctx context.Context, matchID int64) ([]PlayerRow, error) {
	const q = `
		SELECT matchid, steamid64, team, name,
		       kills, deaths, assists, damage, head_shot_kills, utility_damage, enemies_flashed,
		       enemy5ks, enemy4ks, enemy3ks, enemy2ks,
		       v1_count, v1_wins, v2_count, v2_wins, entry_count, entry_wins
		FROM matchzy_stats_players
		WHERE matchid = ?
		ORDER BY team, steamid64`
	var out []PlayerRow
	if err := m.db.SelectContext(ctx, &out, q, matchID); err != nil {
		return nil, fmt.Errorf("%w: player stats %d: %w", ErrUpstream, matchID, err)
	}
	return out, nil
}

// LatestMatchID returns the highest match id the game server has started (0 if none)
func (m *MySQL) LatestMatchID(ctx context.Context) (int64, error) {
	var id int64
	if err := m.db.GetContext(ctx, &id, `SELECT COALESCE(MAX(matchid), 0) FROM matchzy_stats_matches`); err != nil {
		return 0, fmt.Errorf("%w: latest match id: %w", ErrUpstream, err)
	}
	return id, nil
}

func (m *MySQL) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }
