// Package users is the directory that maps Steam accounts to Discord members.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrInvalidUser = errors.New("invalid user")
	// ErrUnresolvedIdentity means a player has no linked Discord member yet. It is
	// recoverable: the award batch is retried once the user is added.
	ErrUnresolvedIdentity = errors.New("unresolved identity")
)

type User struct {
	DiscordID       int64  `db:"discord_id" json:"discord_id"`
	DiscordUsername string `db:"discord_username" json:"discord_username"`
	SteamID64       *int64 `db:"steamid64" json:"steamid64,omitempty"`
}

func NewUser(discordID int64, username string, steamID64 *int64) (User, error) {
	username = strings.TrimSpace(username)
	switch {
	case discordID <= 0:
		return User{}, fmt.Errorf("%w: discord id %d", ErrInvalidUser, discordID)
	case username == "":
		return User{}, fmt.Errorf("%w: user %d has no handle", ErrInvalidUser, discordID)
	case steamID64 != nil && *steamID64 <= 0:
		return User{}, fmt.Errorf("%w: user %d has steamid64 %d", ErrInvalidUser, discordID, *steamID64)
	}
	return User{DiscordID: discordID, DiscordUsername: username, SteamID64: steamID64}, nil
}

// Store is implemented by repo.Postgres
type Store interface {
	// Upsert creates or updates the user, reporting whether it was created
	Upsert(ctx context.Context, u User) (created bool, err error)
	ByDiscordID(ctx context.Context, discordID int64) (User, error)
	BySteamID(ctx context.Context, steamID64 int64) (User, error)
	List(ctx context.Context) ([]User, error)
}

// Directory resolves platform identities for the award processor
type Directory struct {
	Store Store
}

func NewDirectory(s Store) *Directory { return &Directory{Store: s} }

// ResolveSteamID returns the Discord id linked to steamID64
func (d *Directory) ResolveSteamID(ctx context.Context, steamID64 int64) (int64, error) {
	u, err := d.Store.BySteamID(ctx, steamID64)
	if errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("%w: steamid64 %d", ErrUnresolvedIdentity, steamID64)
	}
	if err != nil {
		return 0, err
	}
	return u.DiscordID, nil
}
