package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/radieske/inhouse-points/internal/odds"
)

// Postgres computes rolling ADR from replicated player stats. Rounds played are the
// sum of both team scores of the match.
type Postgres struct {
	db     *sqlx.DB
	window int
}

func NewPostgres(db *sqlx.DB, window int) *Postgres {
	if window <= 0 {
		window = 20
	}
	return &Postgres{db: db, window: window}
}

func (p *Postgres) Ratings(ctx context.Context, steamIDs []int64) (map[int64]odds.Rating, error) {
	out := make(map[int64]odds.Rating, len(steamIDs))
	if len(steamIDs) == 0 {
		return out, nil
	}
	var rows []odds.Rating
	err := p.db.SelectContext(ctx, &rows, `
		WITH per_match AS (
			SELECT s.steamid64,
			       s.damage::DOUBLE PRECISION / GREATEST(m.team1_score + m.team2_score, 1) AS adr,
			       ROW_NUMBER() OVER (PARTITION BY s.steamid64 ORDER BY m.match_id DESC) AS rn
			FROM match_player_stats s
			JOIN matches m ON m.match_id = s.match_id
			WHERE s.steamid64 = ANY($1)
		)
		SELECT steamid64, AVG(adr) AS adr, COUNT(*) AS matches
		FROM per_match
		WHERE rn <= $2
		GROUP BY steamid64`, pq.Array(steamIDs), p.window)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.SteamID64] = r
	}
	return out, nil
}

// PopulationADR is the mean per-match ADR over all stored player rows, 0 when empty
func (p *Postgres) PopulationADR(ctx context.Context) (float64, error) {
	var v float64
	err := p.db.GetContext(ctx, &v, `
		SELECT COALESCE(AVG(s.damage::DOUBLE PRECISION / GREATEST(m.team1_score + m.team2_score, 1)), 0)
		FROM match_player_stats s
		JOIN matches m ON m.match_id = s.match_id`)
	return v, err
}
