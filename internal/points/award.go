package points

import "github.com/radieske/inhouse-points/internal/match"

// Formula is the per-player award for a completed match
type Formula struct {
	Base           int64
	WinBonus       int64
	KillMultiplier int64
	DamageDivisor  int64
}

// Award = base + win bonus + kills*multiplier + floor(damage/divisor). Counters are
// validated non-negative, so integer division floors.
func (f Formula) Award(p match.PlayerStat, winner string) int64 {
	pts := f.Base
	if p.Team == winner {
		pts += f.WinBonus
	}
	pts += int64(p.Kills) * f.KillMultiplier
	if f.DamageDivisor > 0 {
		pts += int64(p.Damage) / f.DamageDivisor
	}
	return pts
}
