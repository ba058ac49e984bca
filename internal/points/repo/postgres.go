package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/points"
	"github.com/radieske/inhouse-points/internal/shared/db"
)

// Postgres reads replicated matches and commits their awards
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) UnprocessedMatches(ctx context.Context) ([]match.Match, error) {
	var out []match.Match
	err := p.db.SelectContext(ctx, &out, `
		SELECT m.match_id, m.start_time, m.end_time, m.winner, m.map_name,
		       m.team1_name, m.team1_score, m.team2_name, m.team2_score
		FROM matches m
		LEFT JOIN processed_events pe
		  ON pe.event_source = $1 AND pe.event_source_id = m.match_id
		WHERE pe.event_source_id IS NULL
		ORDER BY m.match_id`, ledger.SourceMatches)
	return out, err
}

func (p *Postgres) Players(ctx context.Context, matchID int64) ([]match.PlayerStat, error) {
	var out []match.PlayerStat
	err := p.db.SelectContext(ctx, &out, `
		SELECT match_id, steamid64, name, team, kills, deaths, assists, damage, head_shot_kills,
		       utility_damage, enemies_flashed, enemy5ks, enemy4ks, enemy3ks, enemy2ks,
		       v1_count, v1_wins, v2_count, v2_wins, entry_count, entry_wins
		FROM match_player_stats
		WHERE match_id = $1
		ORDER BY steamid64`, matchID)
	return out, err
}

// Commit claims the marker first so a concurrent run blocks on the primary key and then
// finds it taken, rolling back without writing a second set of entries.
func (p *Postgres) Commit(ctx context.Context, source string, id int64, entries []ledger.Entry) error {
	return db.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		fresh, err := ledger.MarkProcessed(ctx, tx, source, id)
		if err != nil {
			return err
		}
		if !fresh {
			return points.ErrAlreadyProcessed
		}
		for _, e := range entries {
			if _, err := ledger.Append(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}
