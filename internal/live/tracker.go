// Package live follows the announced inhouse match on the game server, mirrors its
// score, locks betting after the pistol round, and settles bets when it ends.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/matchzy"
	"github.com/radieske/inhouse-points/internal/odds"
	"github.com/radieske/inhouse-points/internal/shared/poller"
	"github.com/radieske/inhouse-points/internal/wagering"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

// Upstream is the read side of the game server database the tracker polls
type Upstream interface {
	LatestMatchID(ctx context.Context) (int64, error)
	Match(ctx context.Context, id int64) (*matchzy.MatchRow, error)
	MapStats(ctx context.Context, matchID int64) (*matchzy.MapRow, error)
}

type TeamsSource interface {
	Fetch(ctx context.Context) (MatchConfig, error)
}

type OddsSource interface {
	ComputeOdds(ctx context.Context, teamA, teamB []int64) (odds.Pair, error)
}

type Wagerer interface {
	PlaceBet(ctx context.Context, req wagering.PlaceBetRequest) (int64, error)
	SettleMatchBets(ctx context.Context, matchID int64, winningTeam string) (int, error)
}

type Resolver interface {
	ResolveSteamID(ctx context.Context, steamID64 int64) (int64, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, u events.LiveMatchUpdate) error
}

type AnnounceRequest struct {
	ImageURL string `json:"image_url"`
}

// Tracker holds at most one session. A new announcement supersedes the current one.
type Tracker struct {
	Log         *zap.Logger
	Upstream    Upstream
	Teams       TeamsSource
	Odds        OddsSource
	Wagering    Wagerer
	Users       Resolver
	Broadcaster Broadcaster
	Now         func() time.Time

	OnState func(state string)

	mu      sync.Mutex // guards session; held across bet placement
	tickMu  sync.Mutex // one Tick at a time
	session *Session
}

// Announce opens a market for the next match the game server will start
func (t *Tracker) Announce(ctx context.Context, req AnnounceRequest) (events.LiveMatchUpdate, error) {
	cfg, err := t.Teams.Fetch(ctx)
	if err != nil {
		return events.LiveMatchUpdate{}, err
	}
	latest, err := t.Upstream.LatestMatchID(ctx)
	if err != nil {
		return events.LiveMatchUpdate{}, fmt.Errorf("latest match id: %w", err)
	}

	s := &Session{
		ID:              uuid.NewString(),
		State:           events.LiveAnnounced,
		ImageURL:        req.ImageURL,
		MapName:         cfg.MapName(),
		MapSide:         cfg.MapSide(),
		TeamNames:       [2]string{cfg.Team1.Name, cfg.Team2.Name},
		Rosters:         [2][]int64{cfg.Team1.Roster(), cfg.Team2.Roster()},
		ExpectedMatchID: latest + 1,
		AnnouncedAt:     t.now(),
	}
	if len(s.Rosters[0])+len(s.Rosters[1]) != match.ExpectedPlayers {
		t.Log.Warn("unexpected roster size",
			zap.Int("team1", len(s.Rosters[0])),
			zap.Int("team2", len(s.Rosters[1])),
		)
	}
	for i, roster := range s.Rosters {
		s.Members[i] = t.resolve(ctx, roster)
	}

	pair, err := t.Odds.ComputeOdds(ctx, s.Rosters[0], s.Rosters[1])
	if err != nil {
		t.Log.Warn("odds unavailable, opening at even odds", zap.Error(err))
		pair = odds.Pair{A: 0.5, B: 0.5}
	}
	s.Odds = pair

	t.mu.Lock()
	if prev := t.session; prev != nil {
		t.Log.Warn("live session superseded",
			zap.String("sessionId", prev.ID),
			zap.String("state", prev.State),
			zap.Int64("betMatchId", prev.BetMatchID()),
		)
	}
	t.session = s
	u := s.Update(t.now())
	t.mu.Unlock()

	t.Log.Info("live match announced",
		zap.String("sessionId", s.ID),
		zap.Int64("expectedMatchId", s.ExpectedMatchID),
		zap.String("map", s.MapName),
		zap.Strings("teams", s.TeamNames[:]),
		zap.Float64("oddsTeam1", pair.A),
	)
	t.state(s.State)
	t.broadcast(ctx, u)
	return u, nil
}

// Market returns the current session rendered as an update
func (t *Tracker) Market() (events.LiveMatchUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return events.LiveMatchUpdate{}, false
	}
	return t.session.Update(t.now()), true
}

// Session returns a copy of the current session
func (t *Tracker) Session() (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, false
	}
	return t.session.clone(), true
}

// PlaceBet checks the market and escrows the stake at the session's odds. The session
// lock is held through the write so no bet commits after betting locks. It returns the
// bet id and the match id the bet was recorded against.
func (t *Tracker) PlaceBet(ctx context.Context, userID int64, teamName string, amount int64) (betID, matchID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session
	if s == nil || s.State == events.LiveCompleted {
		return 0, 0, wagering.ErrNoActiveMarket
	}
	if s.BettingLocked {
		return 0, 0, wagering.ErrClosedMarket
	}
	idx := s.TeamIndex(teamName)
	if idx < 0 {
		return 0, 0, fmt.Errorf("%w: %q", wagering.ErrInvalidTeam, teamName)
	}
	if team := s.PlaysFor(userID); team >= 0 && team != idx {
		return 0, 0, fmt.Errorf("%w: you play for %s", wagering.ErrBetAgainstOwnTeam, s.TeamNames[team])
	}

	matchID = s.BetMatchID()
	betID, err = t.Wagering.PlaceBet(ctx, wagering.PlaceBetRequest{
		MatchID:  matchID,
		UserID:   userID,
		Amount:   amount,
		TeamName: s.TeamNames[idx],
		Odds:     s.Odds.Side(idx),
	})
	if err != nil {
		return 0, 0, err
	}
	s.BetTotals[idx] += amount
	t.broadcast(ctx, s.Update(t.now()))
	return betID, matchID, nil
}

// Run ticks until ctx is cancelled
func (t *Tracker) Run(ctx context.Context, interval, timeout time.Duration, onError func()) error {
	loop := &poller.Loop{
		Name:     "live",
		Log:      t.Log,
		Interval: interval,
		Timeout:  timeout,
		Cycle: func(ctx context.Context) (int, error) {
			return 0, t.Tick(ctx)
		},
		OnError: onError,
	}
	return loop.Run(ctx)
}

// Tick advances the session by one poll. Upstream reads and settlement run without
// the session lock; results are applied only if the session was not superseded meanwhile.
func (t *Tracker) Tick(ctx context.Context) error {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	s, ok := t.Session()
	if !ok {
		return nil
	}

	switch s.State {
	case events.LiveAnnounced:
		if !t.apply(ctx, s.ID, func(cur *Session) bool {
			cur.State = events.LiveAwaitingStart
			return true
		}) {
			return nil
		}
		t.state(events.LiveAwaitingStart)
		return t.awaitStart(ctx, s.ID, s.ExpectedMatchID)
	case events.LiveAwaitingStart:
		return t.awaitStart(ctx, s.ID, s.ExpectedMatchID)
	case events.LiveInProgress:
		return t.follow(ctx, s)
	}
	return nil
}

func (t *Tracker) awaitStart(ctx context.Context, sessionID string, expected int64) error {
	latest, err := t.Upstream.LatestMatchID(ctx)
	if err != nil {
		return err
	}
	if latest < expected {
		return nil
	}
	if latest > expected {
		t.Log.Warn("match id jumped before start; bets on the expected id need a manual refund",
			zap.Int64("expectedMatchId", expected),
			zap.Int64("latestMatchId", latest),
		)
	}
	if t.apply(ctx, sessionID, func(cur *Session) bool {
		cur.TrackedMatchID = latest
		if latest > expected {
			cur.StaleMatchIDs = append(cur.StaleMatchIDs, expected)
		}
		cur.Scores = match.Scores{}
		cur.State = events.LiveInProgress
		return true
	}) {
		t.Log.Info("live match started", zap.Int64("matchId", latest))
		t.state(events.LiveInProgress)
	}
	return nil
}

func (t *Tracker) follow(ctx context.Context, s *Session) error {
	latest, err := t.Upstream.LatestMatchID(ctx)
	if err != nil {
		return err
	}
	tracked := s.TrackedMatchID
	obs, err := t.readMatch(ctx, tracked)
	if err != nil {
		return err
	}
	// a newer id only means a restart while the tracked match is unfinished
	if latest > tracked && !obs.complete {
		t.Log.Warn("match restarted; bets on the previous id need a manual refund",
			zap.Int64("previousMatchId", tracked),
			zap.Int64("matchId", latest),
		)
		if !t.apply(ctx, s.ID, func(cur *Session) bool {
			cur.retarget(latest)
			return true
		}) {
			return nil
		}
		tracked = latest
		if obs, err = t.readMatch(ctx, tracked); err != nil {
			return err
		}
	}
	if obs.mapRow == nil {
		return nil
	}

	retargeted := false
	if !t.apply(ctx, s.ID, func(cur *Session) bool {
		if cur.TrackedMatchID != tracked {
			retargeted = true
			return false
		}
		changed := cur.observe(obs.scores)
		if obs.complete && !cur.BettingLocked {
			cur.BettingLocked = true
			changed = true
		}
		return changed
	}) || retargeted || !obs.complete {
		return nil
	}

	r := matchRowOrEmpty(obs.row, tracked, s.TeamNames)
	winner := matchzy.Winner(r, *obs.mapRow)
	// bets carry the announced names
	switch winner {
	case r.Team1Name:
		winner = s.TeamNames[0]
	case r.Team2Name:
		winner = s.TeamNames[1]
	}
	return t.complete(ctx, s.ID, tracked, winner)
}

type observation struct {
	mapRow   *matchzy.MapRow
	row      *matchzy.MatchRow
	scores   match.Scores
	complete bool
}

// readMatch reads the upstream state of one match. A match without map stats has not
// started and is never complete.
func (t *Tracker) readMatch(ctx context.Context, matchID int64) (observation, error) {
	mapRow, err := t.Upstream.MapStats(ctx, matchID)
	if err != nil || mapRow == nil {
		return observation{}, err
	}
	row, err := t.Upstream.Match(ctx, matchID)
	if err != nil {
		return observation{}, err
	}
	var final match.Scores
	if row != nil {
		final = row.Final()
	}
	scores := mapRow.Scores()
	return observation{
		mapRow:   mapRow,
		row:      row,
		scores:   scores,
		complete: match.IsComplete(final, scores),
	}, nil
}

// complete settles the tracked match. On failure the session stays in progress and the
// next tick retries; settlement is idempotent.
func (t *Tracker) complete(ctx context.Context, sessionID string, matchID int64, winner string) error {
	n, err := t.Wagering.SettleMatchBets(ctx, matchID, winner)
	if err != nil {
		return fmt.Errorf("settle live match %d: %w", matchID, err)
	}

	var final events.LiveMatchUpdate
	done := false
	t.mu.Lock()
	if cur := t.session; cur != nil && cur.ID == sessionID {
		cur.State = events.LiveCompleted
		cur.Winner = winner
		final = cur.Update(t.now())
		stale := cur.StaleMatchIDs
		t.session = nil
		done = true
		if len(stale) > 0 {
			t.Log.Warn("bets left on restarted match ids", zap.Int64s("matchIds", stale))
		}
	}
	t.mu.Unlock()
	if !done {
		return nil
	}

	t.Log.Info("live match completed",
		zap.Int64("matchId", matchID),
		zap.String("winner", winner),
		zap.Int("betsSettled", n),
	)
	t.state(events.LiveCompleted)
	t.broadcast(ctx, final)
	t.state(StateIdle)
	return nil
}

// apply runs fn on the live session if it is still sessionID and broadcasts when fn
// reports a change. It returns false when the session was superseded.
func (t *Tracker) apply(ctx context.Context, sessionID string, fn func(cur *Session) bool) bool {
	t.mu.Lock()
	cur := t.session
	if cur == nil || cur.ID != sessionID {
		t.mu.Unlock()
		return false
	}
	changed := fn(cur)
	u := cur.Update(t.now())
	t.mu.Unlock()

	if changed {
		t.broadcast(ctx, u)
	}
	return true
}

func (t *Tracker) resolve(ctx context.Context, roster []int64) []int64 {
	out := make([]int64, 0, len(roster))
	for _, steam := range roster {
		id, err := t.Users.ResolveSteamID(ctx, steam)
		if err != nil {
			t.Log.Debug("roster player not linked", zap.Int64("steamid64", steam), zap.Error(err))
			continue
		}
		out = append(out, id)
	}
	return out
}

func (t *Tracker) broadcast(ctx context.Context, u events.LiveMatchUpdate) {
	if t.Broadcaster == nil {
		return
	}
	if err := t.Broadcaster.Broadcast(ctx, u); err != nil {
		t.Log.Warn("live broadcast", zap.String("state", u.State), zap.Error(err))
	}
}

func (t *Tracker) state(s string) {
	if t.OnState != nil {
		t.OnState(s)
	}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now().UTC()
}

// matchRowOrEmpty lets the winner fall back to the announced team names when the
// match row has not been written yet
func matchRowOrEmpty(row *matchzy.MatchRow, id int64, names [2]string) matchzy.MatchRow {
	if row != nil {
		return *row
	}
	return matchzy.MatchRow{MatchID: id, Team1Name: names[0], Team2Name: names[1]}
}
