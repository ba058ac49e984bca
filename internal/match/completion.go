package match

// Scores is a (team1, team2) round pair.
type Scores struct {
	Team1 int
	Team2 int
}

func (s Scores) Zero() bool { return s.Team1 == 0 && s.Team2 == 0 }

func (s Scores) Leader() (higher, lower int) {
	if s.Team1 >= s.Team2 {
		return s.Team1, s.Team2
	}
	return s.Team2, s.Team1
}

// first to 13 (MR12), first to 16 (MR15), then MR3 overtimes
var terminalRounds = map[int]struct{}{13: {}, 16: {}, 19: {}, 22: {}, 25: {}}

// IsComplete decides whether an upstream match is over. MatchZy does not always write the
// final series score, so the map score is also accepted when the leader sits on a terminal
// round count and is not in an ongoing overtime (13-12, 16-15, ...).
func IsComplete(final, mapScores Scores) bool {
	if !final.Zero() {
		return true
	}
	higher, lower := mapScores.Leader()
	if _, ok := terminalRounds[higher]; !ok {
		return false
	}
	return higher-lower > 1
}
