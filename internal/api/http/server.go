// Package httpapi is the public and operator HTTP surface of the inhouse service.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/live"
	"github.com/radieske/inhouse-points/internal/match"
	"github.com/radieske/inhouse-points/internal/users"
	"github.com/radieske/inhouse-points/internal/wagering"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

// Live is implemented by live.Tracker
type Live interface {
	Announce(ctx context.Context, req live.AnnounceRequest) (events.LiveMatchUpdate, error)
	Market() (events.LiveMatchUpdate, bool)
	PlaceBet(ctx context.Context, userID int64, teamName string, amount int64) (betID, matchID int64, err error)
}

// Ledger is implemented by ledger.Store
type Ledger interface {
	Balance(ctx context.Context, discordID int64) (int64, error)
	History(ctx context.Context, discordID int64, limit int) ([]ledger.Entry, error)
	Leaderboard(ctx context.Context, limit int) ([]ledger.Balance, error)
	Reward(ctx context.Context, discordID, amount int64, reason string) (int64, error)
	Transfer(ctx context.Context, from, to, amount int64) (int64, int64, error)
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// Wagering is implemented by wagering.Service
type Wagering interface {
	SettleMatchBets(ctx context.Context, matchID int64, winningTeam string) (int, error)
	RefundMatchBets(ctx context.Context, matchID int64, reason string) (int, error)
	MatchBets(ctx context.Context, matchID int64) ([]wagering.Bet, error)
}

// Matches is implemented by the replicator repo
type Matches interface {
	Match(ctx context.Context, id int64) (match.Match, error)
	Players(ctx context.Context, matchID int64) ([]match.PlayerStat, error)
}

type Users interface {
	Upsert(ctx context.Context, u users.User) (bool, error)
	ByDiscordID(ctx context.Context, discordID int64) (users.User, error)
	List(ctx context.Context) ([]users.User, error)
}

// ReadCache is implemented by cache.JSON
type ReadCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

const (
	// replicated matches never change
	matchCacheTTL       = 10 * time.Minute
	leaderboardCacheTTL = 10 * time.Second
)

type API struct {
	Log      *zap.Logger
	Live     Live
	Ledger   Ledger
	Wagering Wagering
	Matches  Matches
	Users    Users
	// Cache is optional
	Cache ReadCache

	// WS serves GET /ws when set
	WS http.HandlerFunc
	// AnnounceLimiter throttles POST /live/announce when set
	AnnounceLimiter *rate.Limiter
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/live", a.getLive)
	r.With(a.throttle).Post("/live/announce", a.announce)
	r.Post("/bets", a.placeBet)

	r.Get("/leaderboard", a.leaderboard)
	r.Post("/points/transfer", a.transfer)
	r.Get("/users", a.listUsers)
	r.Get("/users/{id}", a.getUser)
	r.Get("/users/{id}/points", a.userPoints)

	r.Get("/matches/{id}", a.getMatch)
	r.Get("/matches/{id}/bets", a.matchBets)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/points/reward", a.reward)
		r.Post("/users", a.upsertUser)
		r.Post("/matches/{id}/settle", a.settle)
		r.Post("/matches/{id}/refund", a.refund)
		r.Get("/ledger/reconcile", a.reconcile)
	})

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

func NewServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to statuses; anything unknown is a 500 and gets logged
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, wagering.ErrInvalidBet),
		errors.Is(err, wagering.ErrInvalidTeam),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidReason),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, users.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, wagering.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, wagering.ErrClosedMarket),
		errors.Is(err, wagering.ErrBetAgainstOwnTeam),
		errors.Is(err, wagering.ErrNoActiveMarket):
		return http.StatusConflict
	case errors.Is(err, live.ErrTeamsConfig):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body; an empty body is accepted when optional is set
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return errors.Join(errBadRequest, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(errBadRequest, errors.New("id must be a positive integer"))
	}
	return id, nil
}

// queryLimit reads ?limit= within [1, max]
func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// cached serves key from the cache or fills it with load. Cache failures only cost a
// database read.
func (a *API) cached(ctx context.Context, key string, ttl time.Duration, dst any, load func() error) error {
	if a.Cache != nil {
		if ok, err := a.Cache.Get(ctx, key, dst); ok && err == nil {
			return nil
		}
	}
	if err := load(); err != nil {
		return err
	}
	if a.Cache != nil {
		if err := a.Cache.Set(ctx, key, dst, ttl); err != nil {
			a.Log.Debug("cache set", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (a *API) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.AnnounceLimiter != nil && !a.AnnounceLimiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
