package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/shared/db"
)

// Postgres persists replicated matches in the canonical store
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// LastMatchID is the replication watermark: the highest match already stored, 0 if none
func (p *Postgres) LastMatchID(ctx context.Context) (int64, error) {
	var id int64
	err := p.db.GetContext(ctx, &id, `SELECT COALESCE(MAX(match_id), 0) FROM matches`)
	return id, err
}

// InsertMatch writes the match and its players in one transaction. The match insert is
// ON CONFLICT DO NOTHING: a second insert of the same id is a no-op, never an overwrite.
func (p *Postgres) InsertMatch(ctx context.Context, m match.Match, players []match.PlayerStat) (bool, error) {
	inserted := false
	err := db.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO matches
			  (match_id, start_time, end_time, winner, map_name, team1_name, team1_score, team2_name, team2_score)
			VALUES
			  (:match_id, :start_time, :end_time, :winner, :map_name, :team1_name, :team1_score, :team2_name, :team2_score)
			ON CONFLICT (match_id) DO NOTHING`, m)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		inserted = true

		for _, pl := range players {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO match_player_stats
				  (match_id, steamid64, name, team, kills, deaths, assists, damage, head_shot_kills,
				   utility_damage, enemies_flashed, enemy5ks, enemy4ks, enemy3ks, enemy2ks,
				   v1_count, v1_wins, v2_count, v2_wins, entry_count, entry_wins)
				VALUES
				  (:match_id, :steamid64, :name, :team, :kills, :deaths, :assists, :damage, :head_shot_kills,
				   :utility_damage, :enemies_flashed, :enemy5ks, :enemy4ks, :enemy3ks, :enemy2ks,
				   :v1_count, :v1_wins, :v2_count, :v2_wins, :entry_count, :entry_wins)
				ON CONFLICT (match_id, steamid64) DO NOTHING`, pl); err != nil {
				return fmt.Errorf("insert player %d: %w", pl.SteamID64, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Match loads one replicated match
func (p *Postgres) Match(ctx context.Context, id int64) (match.Match, error) {
	var m match.Match
	err := p.db.GetContext(ctx, &m, `
		SELECT match_id, start_time, end_time, winner, map_name, team1_name, team1_score, team2_name, team2_score
		FROM matches WHERE match_id = $1`, id)
	return m, err
}

// Players loads the stored player rows of a match
func (p *Postgres) Players(ctx context.Context, matchID int64) ([]match.PlayerStat, error) {
	var out []match.PlayerStat
	err := p.db.SelectContext(ctx, &out, `
		SELECT match_id, steamid64, name, team, kills, deaths, assists, damage, head_shot_kills,
		       utility_damage, enemies_flashed, enemy5ks, enemy4ks, enemy3ks, enemy2ks,
		       v1_count, v1_wins, v2_count, v2_wins, entry_count, entry_wins
		FROM match_player_stats
		WHERE match_id = $1
		ORDER BY team, steamid64`, matchID)
	return out, err
}
