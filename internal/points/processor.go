// Package points turns replicated matches into ledger awards exactly once.
package points

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/users"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

const awardReason = "Played CS2"

// ErrAlreadyProcessed is returned by Store.Commit when the marker exists
var ErrAlreadyProcessed = errors.New("event already processed")

// Store is the canonical side of the processor
type Store interface {
	// UnprocessedMatches anti-joins matches against processed_events
	UnprocessedMatches(ctx context.Context) ([]match.Match, error)
	Players(ctx context.Context, matchID int64) ([]match.PlayerStat, error)
	// Commit writes entries and the (source, id) marker in one transaction
	Commit(ctx context.Context, source string, id int64, entries []ledger.Entry) error
}

type Directory interface {
	ResolveSteamID(ctx context.Context, steamID64 int64) (int64, error)
}

type Processor struct {
	Log       *zap.Logger
	Store     Store
	Directory Directory
	Formula   Formula

	OnAwarded func(events.PointsAwarded)
	OnError   func(stage string)
}

// ProcessNewPointEvents awards every match without a marker and returns how many were
// committed. A failing match is skipped and retried next cycle; the others still run.
func (p *Processor) ProcessNewPointEvents(ctx context.Context) (int, error) {
	matches, err := p.Store.UnprocessedMatches(ctx)
	if err != nil {
		p.fail("unprocessed")
		return 0, fmt.Errorf("list unprocessed matches: %w", err)
	}
	if len(matches) == 0 {
		return 0, nil
	}
	p.Log.Info("unprocessed matches", zap.Int("count", len(matches)))

	processed := 0
	var errs []error
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, err := p.processMatch(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			processed++
		}
	}
	return processed, errors.Join(errs...)
}

func (p *Processor) processMatch(ctx context.Context, m match.Match) (bool, error) {
	players, err := p.Store.Players(ctx, m.ID)
	if err != nil {
		p.fail("players")
		return false, fmt.Errorf("match %d players: %w", m.ID, err)
	}

	entries, awards, err := p.buildEntries(ctx, m, players)
	if err != nil {
		if errors.Is(err, users.ErrUnresolvedIdentity) {
			// retried every cycle until the player is linked
			p.Log.Warn("aborting match awards", zap.Int64("matchId", m.ID), zap.Error(err))
			p.fail("unresolved_identity")
			return false, nil
		}
		p.fail("resolve")
		return false, fmt.Errorf("match %d: %w", m.ID, err)
	}

	if err := p.Store.Commit(ctx, ledger.SourceMatches, m.ID, entries); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			p.Log.Info("match already awarded", zap.Int64("matchId", m.ID))
			return false, nil
		}
		p.fail("commit")
		return false, fmt.Errorf("commit match %d awards: %w", m.ID, err)
	}

	p.Log.Info("match awarded", zap.Int64("matchId", m.ID), zap.Int("players", len(entries)))
	if p.OnAwarded != nil {
		p.OnAwarded(events.PointsAwarded{MatchID: m.ID, Awards: awards, Ts: m.EndTime})
	}
	return true, nil
}

// buildEntries resolves every player first; one unknown player aborts the whole match
func (p *Processor) buildEntries(ctx context.Context, m match.Match, players []match.PlayerStat) ([]ledger.Entry, map[int64]int64, error) {
	entries := make([]ledger.Entry, 0, len(players))
	awards := make(map[int64]int64, len(players))
	for _, pl := range players {
		discordID, err := p.Directory.ResolveSteamID(ctx, pl.SteamID64)
		if err != nil {
			return nil, nil, err
		}
		amount := p.Formula.Award(pl, m.Winner)
		entries = append(entries, ledger.Entry{
			DiscordID:     discordID,
			Change:        amount,
			CreatedAt:     m.StartTime,
			Category:      ledger.CategoryCS2,
			Reason:        awardReason,
			EventSource:   ledger.SourceMatches,
			EventSourceID: ledger.SourceID(m.ID),
		})
		awards[discordID] += amount
	}
	return entries, awards, nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
