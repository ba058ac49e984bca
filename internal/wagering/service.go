package wagering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

// Store is implemented by repo.Postgres; each method is one transaction
type Store interface {
	PlaceBet(ctx context.Context, b Bet) (int64, error)
	Settle(ctx context.Context, matchID int64, winningTeam string) (SettleResult, error)
	Refund(ctx context.Context, matchID int64, reason string) (SettleResult, error)
	MatchBets(ctx context.Context, matchID int64) ([]Bet, error)
}

type Service struct {
	Log   *zap.Logger
	Store Store
	Now   func() time.Time

	OnPlaced  func(events.BetPlaced)
	OnSettled func(events.BetsSettled, SettleResult)
	OnAnomaly func()
}

// PlaceBet validates, computes the payout, and escrows the stake. Market checks (open,
// team, own team) belong to the caller.
func (s *Service) PlaceBet(ctx context.Context, req PlaceBetRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	b := Bet{
		MatchID:   req.MatchID,
		DiscordID: req.UserID,
		Amount:    req.Amount,
		TeamName:  strings.TrimSpace(req.TeamName),
		Odds:      req.Odds,
		Payout:    Payout(req.Amount, req.Odds),
		Active:    true,
	}

	id, err := s.Store.PlaceBet(ctx, b)
	if err != nil {
		return 0, err
	}

	s.Log.Info("bet placed",
		zap.Int64("betId", id),
		zap.Int64("matchId", b.MatchID),
		zap.Int64("userId", b.DiscordID),
		zap.String("team", b.TeamName),
		zap.Int64("amount", b.Amount),
		zap.Int64("payout", b.Payout),
	)
	if s.OnPlaced != nil {
		s.OnPlaced(events.BetPlaced{
			BetID:    id,
			MatchID:  b.MatchID,
			UserID:   b.DiscordID,
			TeamName: b.TeamName,
			Amount:   b.Amount,
			Odds:     b.Odds,
			Payout:   b.Payout,
			Ts:       s.now(),
		})
	}
	return id, nil
}

// SettleMatchBets pays winners and closes every active bet of the match together.
// Running it again for the same match settles nothing.
func (s *Service) SettleMatchBets(ctx context.Context, matchID int64, winningTeam string) (int, error) {
	winningTeam = strings.TrimSpace(winningTeam)
	if matchID <= 0 || winningTeam == "" {
		return 0, fmt.Errorf("%w: settle match %d for %q", ErrInvalidBet, matchID, winningTeam)
	}

	res, err := s.Store.Settle(ctx, matchID, winningTeam)
	if err != nil {
		return 0, fmt.Errorf("settle match %d: %w", matchID, err)
	}
	s.report(matchID, res)

	s.Log.Info("match bets settled",
		zap.Int64("matchId", matchID),
		zap.String("winner", winningTeam),
		zap.Int("settled", res.Settled),
		zap.Int("won", res.Won),
		zap.Int64("paidOut", res.PaidOut),
	)
	if s.OnSettled != nil {
		s.OnSettled(events.BetsSettled{
			MatchID:     matchID,
			WinningTeam: winningTeam,
			Settled:     res.Settled,
			PaidOut:     res.PaidOut,
			Ts:          s.now(),
		}, res)
	}
	return res.Settled, nil
}

// RefundMatchBets reverses the escrow of every active bet of the match. It is the
// manual compensation for bets stranded on a restarted match id.
func (s *Service) RefundMatchBets(ctx context.Context, matchID int64, reason string) (int, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = fmt.Sprintf("Refund for match %d", matchID)
	}
	if matchID <= 0 {
		return 0, fmt.Errorf("%w: match id %d", ErrInvalidBet, matchID)
	}

	res, err := s.Store.Refund(ctx, matchID, reason)
	if err != nil {
		return 0, fmt.Errorf("refund match %d: %w", matchID, err)
	}
	s.report(matchID, res)

	s.Log.Info("match bets refunded",
		zap.Int64("matchId", matchID),
		zap.Int("refunded", res.Settled),
		zap.Int64("amount", res.PaidOut),
		zap.String("reason", reason),
	)
	if s.OnSettled != nil {
		s.OnSettled(events.BetsSettled{
			MatchID: matchID,
			Settled: res.Settled,
			PaidOut: res.PaidOut,
			Refund:  true,
			Ts:      s.now(),
		}, res)
	}
	return res.Settled, nil
}

func (s *Service) MatchBets(ctx context.Context, matchID int64) ([]Bet, error) {
	return s.Store.MatchBets(ctx, matchID)
}

func (s *Service) report(matchID int64, res SettleResult) {
	if len(res.AlreadyInactive) > 0 {
		s.Log.Warn("inactive bets skipped during settlement",
			zap.Int64("matchId", matchID),
			zap.Int64s("betIds", res.AlreadyInactive),
		)
	}
	for _, id := range res.Anomalies {
		s.Log.Error("bet already settled",
			zap.Int64("matchId", matchID),
			zap.Int64("betId", id),
		)
		if s.OnAnomaly != nil {
			s.OnAnomaly()
		}
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
