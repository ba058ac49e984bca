package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/inhouse-points/internal/users"
)

// Postgres stores the user directory
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// Upsert relies on xmax = 0 to tell an insert from an update in a single round trip
func (p *Postgres) Upsert(ctx context.Context, u users.User) (bool, error) {
	var created bool
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO users (discord_id, discord_username, steamid64)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id) DO UPDATE SET
			discord_username = EXCLUDED.discord_username,
			steamid64 = EXCLUDED.steamid64
		RETURNING (xmax = 0)`, u.DiscordID, u.DiscordUsername, u.SteamID64).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert user %d: %w", u.DiscordID, err)
	}
	return created, nil
}

func (p *Postgres) ByDiscordID(ctx context.Context, discordID int64) (users.User, error) {
	return p.get(ctx, `SELECT discord_id, discord_username, steamid64 FROM users WHERE discord_id = $1`, discordID)
}

func (p *Postgres) BySteamID(ctx context.Context, steamID64 int64) (users.User, error) {
	return p.get(ctx, `SELECT discord_id, discord_username, steamid64 FROM users WHERE steamid64 = $1`, steamID64)
}

func (p *Postgres) List(ctx context.Context) ([]users.User, error) {
	var out []users.User
	if err := p.db.SelectContext(ctx, &out, `SELECT discord_id, discord_username, steamid64 FROM users ORDER BY discord_id`); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) get(ctx context.Context, q string, arg int64) (users.User, error) {
	var u users.User
	if err := p.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, err
	}
	return u, nil
}
