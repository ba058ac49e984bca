// Package replicator copies completed matches from the MatchZy database into the
// canonical store.
package replicator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/matchzy"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

// Source is the read-only upstream.
type Source interface {
	MatchesSince(ctx context.Context, id int64) ([]matchzy.MatchRow, error)
	MapStats(ctx context.Context, matchID int64) (*matchzy.MapRow, error)
	PlayerStats(ctx context.Context, matchID int64) ([]matchzy.PlayerRow, error)
}

// Store is the canonical side. InsertMatch must write the match and its players in one
// transaction and report false when the match id already existed.
type Store interface {
	LastMatchID(ctx context.Context) (int64, error)
	InsertMatch(ctx context.Context, m match.Match, players []match.PlayerStat) (bool, error)
}

// Replicator polls the upstream for matches past the store's watermark
type Replicator struct {
	Log    *zap.Logger
	Source Source
	Store  Store
	Now    func() time.Time

	OnReplicated func(events.MatchReplicated) // metrics + publishing
	OnIncomplete func()
	OnError      func(stage string)
}

// ReplicateNewMatches runs one poll cycle and returns the number of matches inserted.
// The watermark is read back from the store on every cycle, so a match that fails to
// write is never skipped: the cycle stops there and the next one starts from it again.
func (r *Replicator) ReplicateNewMatches(ctx context.Context) (int, error) {
	watermark, err := r.Store.LastMatchID(ctx)
	if err != nil {
		r.fail("watermark")
		return 0, fmt.Errorf("read watermark: %w", err)
	}

	rows, err := r.Source.MatchesSince(ctx, watermark)
	if err != nil {
		r.fail("upstream_matches")
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	r.Log.Debug("candidate matches", zap.Int64("watermark", watermark), zap.Int("count", len(rows)))

	processed := 0
	for _, row := range rows {
		inserted, err := r.replicateOne(ctx, row)
		if err != nil {
			r.Log.Error("replicate match", zap.Int64("matchId", row.MatchID), zap.Error(err))
			return processed, err
		}
		if inserted {
			processed++
		}
	}
	return processed, nil
}

func (r *Replicator) replicateOne(ctx context.Context, row matchzy.MatchRow) (bool, error) {
	mapRow, err := r.Source.MapStats(ctx, row.MatchID)
	if err != nil {
		r.fail("upstream_maps")
		return false, err
	}
	if mapRow == nil {
		// the match row is written before the map row when a map starts
		r.Log.Warn("match has no map stats yet", zap.Int64("matchId", row.MatchID))
		return false, nil
	}

	if !match.IsComplete(row.Final(), mapRow.Scores()) {
		r.Log.Debug("match not complete",
			zap.Int64("matchId", row.MatchID),
			zap.Int("team1", mapRow.Team1Score),
			zap.Int("team2", mapRow.Team2Score),
		)
		if r.OnIncomplete != nil {
			r.OnIncomplete()
		}
		return false, nil
	}

	m, err := BuildMatch(row, *mapRow, r.now())
	if err != nil {
		r.Log.Warn("skipping malformed match", zap.Int64("matchId", row.MatchID), zap.Error(err))
		r.fail("integrity")
		return false, nil
	}

	playerRows, err := r.Source.PlayerStats(ctx, row.MatchID)
	if err != nil {
		r.fail("upstream_players")
		return false, err
	}
	players := make([]match.PlayerStat, 0, len(playerRows))
	for _, pr := range playerRows {
		p, err := pr.ToStat()
		if err != nil {
			r.Log.Warn("skipping player row", zap.Int64("matchId", row.MatchID), zap.Error(err))
			continue
		}
		if p.IsSpectator() {
			continue
		}
		players = append(players, p)
	}
	if len(players) != match.ExpectedPlayers {
		r.Log.Warn("unexpected player count",
			zap.Int64("matchId", row.MatchID),
			zap.Int("players", len(players)),
		)
	}

	inserted, err := r.Store.InsertMatch(ctx, m, players)
	if err != nil {
		r.fail("store")
		return false, fmt.Errorf("insert match %d: %w", m.ID, err)
	}
	if !inserted {
		r.Log.Debug("match already replicated", zap.Int64("matchId", m.ID))
		return false, nil
	}

	r.Log.Info("match replicated",
		zap.Int64("matchId", m.ID),
		zap.String("map", m.MapName),
		zap.String("winner", m.Winner),
		zap.Int("players", len(players)),
	)
	if r.OnReplicated != nil {
		r.OnReplicated(events.MatchReplicated{
			MatchID:    m.ID,
			MapName:    m.MapName,
			Team1Name:  m.Team1Name,
			Team1Score: m.Team1Score,
			Team2Name:  m.Team2Name,
			Team2Score: m.Team2Score,
			Winner:     m.Winner,
			Players:    len(players),
			Ts:         r.now(),
		})
	}
	return true, nil
}

func (r *Replicator) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Replicator) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}

// BuildMatch merges the match and map rows. MatchZy often leaves end_time unset, so the
// map value wins, then the match value, then now.
func BuildMatch(row matchzy.MatchRow, mapRow matchzy.MapRow, now time.Time) (match.Match, error) {
	start := mapRow.StartTime
	if !start.Valid {
		start = row.StartTime
	}

	end := now
	switch {
	case mapRow.EndTime.Valid:
		end = mapRow.EndTime.Time
	case row.EndTime.Valid:
		end = row.EndTime.Time
	}

	var startTime time.Time
	if start.Valid {
		startTime = start.Time
	}
	return match.NewMatch(
		row.MatchID,
		mapRow.MapName,
		startTime,
		end,
		match.Team{Name: row.Team1Name, Score: mapRow.Team1Score},
		match.Team{Name: row.Team2Name, Score: mapRow.Team2Score},
		matchzy.Winner(row, mapRow),
	)
}
