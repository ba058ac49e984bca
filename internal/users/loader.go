package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
)

// Record is one entry of users.json. Ids are accepted as JSON numbers or strings
// because Discord snowflakes overflow float64 in most exporters.
type Record struct {
	ID      flexID `json:"id"`
	Handle  string `json:"handle"`
	SteamID flexID `json:"steamId"`
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	*f = flexID(b)
	return nil
}

func (f flexID) int64() (int64, bool, error) {
	if f == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// LoadResult summarizes an import
type LoadResult struct {
	Created int
	Updated int
	Errors  []string
}

// Loader imports users.json idempotently: missing users are created, existing ones updated.
type Loader struct {
	Log   *zap.Logger
	Store Store
}

func (l *Loader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return LoadResult{}, fmt.Errorf("decode users: %w", err)
	}

	var res LoadResult
	for i, rec := range records {
		u, err := rec.toUser()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("record %d: %v", i, err))
			l.Log.Warn("invalid user record", zap.Int("index", i), zap.Error(err))
			continue
		}

		created, err := l.Store.Upsert(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Errors = append(res.Errors, fmt.Sprintf("user %d: %v", u.DiscordID, err))
			l.Log.Error("upsert user", zap.Int64("discordId", u.DiscordID), zap.Error(err))
			continue
		}
		if created {
			res.Created++
			l.Log.Info("created user", zap.String("handle", u.DiscordUsername), zap.Int64("discordId", u.DiscordID))
		} else {
			res.Updated++
			l.Log.Info("updated user", zap.String("handle", u.DiscordUsername), zap.Int64("discordId", u.DiscordID))
		}
	}
	return res, nil
}

func (r Record) toUser() (User, error) {
	id, ok, err := r.ID.int64()
	if err != nil {
		return User{}, fmt.Errorf("%w: id %q", ErrInvalidUser, r.ID)
	}
	if !ok {
		return User{}, fmt.Errorf("%w: missing id", ErrInvalidUser)
	}

	var steam *int64
	sid, ok, err := r.SteamID.int64()
	if err != nil {
		return User{}, fmt.Errorf("%w: steamId %q", ErrInvalidUser, r.SteamID)
	}
	if ok {
		steam = &sid
	}
	return NewUser(id, r.Handle, steam)
}
