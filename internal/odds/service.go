package odds

import (
	"context"
	"fmt"
)

// History reads rolling ratings from the canonical store
type History interface {
	Ratings(ctx context.Context, steamIDs []int64) (map[int64]Rating, error)
	PopulationADR(ctx context.Context) (float64, error)
}

type Service struct {
	History History
	Calc    *Calculator
}

func NewService(h History, c *Calculator) *Service { return &Service{History: h, Calc: c} }

// ComputeOdds loads both rosters' history and returns the win probability pair
func (s *Service) ComputeOdds(ctx context.Context, teamA, teamB []int64) (Pair, error) {
	ids := make([]int64, 0, len(teamA)+len(teamB))
	ids = append(ids, teamA...)
	ids = append(ids, teamB...)

	ratings, err := s.History.Ratings(ctx, ids)
	if err != nil {
		return Pair{}, fmt.Errorf("load ratings: %w", err)
	}
	pop, err := s.History.PopulationADR(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("load population adr: %w", err)
	}
	return s.Calc.Compute(pick(ratings, teamA), pick(ratings, teamB), pop), nil
}

func pick(ratings map[int64]Rating, ids []int64) []Rating {
	out := make([]Rating, 0, len(ids))
	for _, id := range ids {
		r, ok := ratings[id]
		if !ok {
			r = Rating{SteamID64: id}
		}
		out = append(out, r)
	}
	return out
}
