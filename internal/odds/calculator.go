// Package odds turns two rosters into a win probability pair.
package odds

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidParams = errors.New("invalid odds parameters")

// Params scale the skill differential: every Unit of summed ADR above the population
// shifts the probability by ShiftPerUnit, capped at MaxSkew either way.
type Params struct {
	Unit         float64
	ShiftPerUnit float64
	MaxSkew      float64
	MinMatches   int
}

func DefaultParams() Params {
	return Params{Unit: 10, ShiftPerUnit: 0.05, MaxSkew: 0.35, MinMatches: 3}
}

func (p Params) Validate() error {
	switch {
	case p.Unit <= 0:
		return fmt.Errorf("%w: unit must be positive", ErrInvalidParams)
	case p.ShiftPerUnit < 0:
		return fmt.Errorf("%w: shift per unit must not be negative", ErrInvalidParams)
	case p.MaxSkew < 0 || p.MaxSkew >= 0.5:
		return fmt.Errorf("%w: max skew must be in [0, 0.5)", ErrInvalidParams)
	case p.MinMatches < 0:
		return fmt.Errorf("%w: min matches must not be negative", ErrInvalidParams)
	}
	return nil
}

// Rating is a player's rolling average damage per round over Matches games
type Rating struct {
	SteamID64 int64   `db:"steamid64" json:"steamid64"`
	ADR       float64 `db:"adr" json:"adr"`
	Matches   int     `db:"matches" json:"matches"`
}

// Pair is (team A, team B) win probability; A + B == 1
type Pair struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Side returns the probability of team index 0 or 1
func (p Pair) Side(i int) float64 {
	if i == 0 {
		return p.A
	}
	return p.B
}

type Calculator struct {
	Params Params
}

func NewCalculator(p Params) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{Params: p}, nil
}

// Compute is deterministic and has no side effects. Players below MinMatches count as
// the population average, so unknown players neither help nor hurt their team.
func (c *Calculator) Compute(a, b []Rating, population float64) Pair {
	d := c.teamDelta(a, population) - c.teamDelta(b, population)
	if d == 0 {
		return Pair{A: 0.5, B: 0.5}
	}
	shift := d / c.Params.Unit * c.Params.ShiftPerUnit
	if shift > c.Params.MaxSkew {
		shift = c.Params.MaxSkew
	}
	if shift < -c.Params.MaxSkew {
		shift = -c.Params.MaxSkew
	}
	pa := 0.5 + shift
	return Pair{A: pa, B: 1 - pa}
}

// teamDelta sums in ascending order so equal rosters in any order give the same float
func (c *Calculator) teamDelta(team []Rating, population float64) float64 {
	deltas := make([]float64, 0, len(team))
	for _, r := range team {
		if r.Matches < c.Params.MinMatches || r.Matches == 0 {
			continue
		}
		deltas = append(deltas, r.ADR-population)
	}
	slices.Sort(deltas)
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	return sum
}
