package live

import (
	"slices"
	"time"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/odds"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

// StateIdle is reported when no session exists
const StateIdle = "IDLE"

// States lists every state the tracker reports, in order
var States = []string{
	StateIdle,
	events.LiveAnnounced,
	events.LiveAwaitingStart,
	events.LiveInProgress,
	events.LiveCompleted,
}

// Session is the single live market. It is only mutated under Tracker.mu.
type Session struct {
	ID       string
	State    string
	ImageURL string
	MapName  string
	MapSide  string

	TeamNames [2]string
	Rosters   [2][]int64 // steamid64
	Members   [2][]int64 // discord ids that resolved
	Odds      odds.Pair

	// ExpectedMatchID is latest upstream id + 1 at announce time
	ExpectedMatchID int64
	// TrackedMatchID is 0 until the match starts; a restart moves it forward
	TrackedMatchID int64
	// StaleMatchIDs were tracked before a restart; their bets wait for a manual refund
	StaleMatchIDs []int64

	Scores        match.Scores
	BettingLocked bool
	BetTotals     [2]int64
	Winner        string

	AnnouncedAt time.Time
}

// BetMatchID is the match id new bets are recorded against
func (s *Session) BetMatchID() int64 {
	if s.TrackedMatchID > 0 {
		return s.TrackedMatchID
	}
	return s.ExpectedMatchID
}

// TeamIndex returns 0 or 1, or -1 when name is not playing
func (s *Session) TeamIndex(name string) int {
	for i, n := range s.TeamNames {
		if n == name {
			return i
		}
	}
	return -1
}

// PlaysFor reports the team index of a Discord member, -1 if spectating
func (s *Session) PlaysFor(discordID int64) int {
	for i, m := range s.Members {
		if slices.Contains(m, discordID) {
			return i
		}
	}
	return -1
}

// retarget follows a restarted match: the new id starts from a zero baseline
func (s *Session) retarget(id int64) {
	if s.TrackedMatchID > 0 {
		s.StaleMatchIDs = append(s.StaleMatchIDs, s.TrackedMatchID)
	}
	s.TrackedMatchID = id
	s.Scores = match.Scores{}
}

// observe records a score and locks betting the first time any score is nonzero.
// It reports whether the score changed.
func (s *Session) observe(scores match.Scores) bool {
	if scores == s.Scores {
		return false
	}
	s.Scores = scores
	if !scores.Zero() {
		s.BettingLocked = true
	}
	return true
}

func (s *Session) clone() *Session {
	c := *s
	c.StaleMatchIDs = slices.Clone(s.StaleMatchIDs)
	for i := range s.Rosters {
		c.Rosters[i] = slices.Clone(s.Rosters[i])
		c.Members[i] = slices.Clone(s.Members[i])
	}
	return &c
}

// Update renders the session for broadcasting
func (s *Session) Update(now time.Time) events.LiveMatchUpdate {
	return events.LiveMatchUpdate{
		SessionID:     s.ID,
		State:         s.State,
		MatchID:       s.BetMatchID(),
		MapName:       s.MapName,
		MapSide:       s.MapSide,
		ImageURL:      s.ImageURL,
		TeamNames:     s.TeamNames,
		Odds:          [2]float64{s.Odds.A, s.Odds.B},
		Scores:        [2]int{s.Scores.Team1, s.Scores.Team2},
		BetTotals:     s.BetTotals,
		BettingLocked: s.BettingLocked,
		Winner:        s.Winner,
		Restarted:     len(s.StaleMatchIDs) > 0,
		Ts:            now,
	}
}
