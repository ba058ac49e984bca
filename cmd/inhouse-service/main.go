package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httpapi "github.com/radieske/inhouse-points/internal/api/http"
	"github.com/radieske/inhouse-points/internal/api/ws"
	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/live"
	"github.com/radieske/inhouse-points/internal/matchzy"
	"github.com/radieske/inhouse-points/internal/migrations"
	"github.com/radieske/inhouse-points/internal/odds"
	oddsrepo "github.com/radieske/inhouse-points/internal/odds/repo"
	"github.com/radieske/inhouse-points/internal/points"
	pointsrepo "github.com/radieske/inhouse-points/internal/points/repo"
	"github.com/radieske/inhouse-points/internal/replicator"
	replrepo "github.com/radieske/inhouse-points/internal/replicator/repo"
	"github.com/radieske/inhouse-points/internal/shared/cache"
	"github.com/radieske/inhouse-points/internal/shared/config"
	"github.com/radieske/inhouse-points/internal/shared/db"
	"github.com/radieske/inhouse-points/internal/shared/kafka"
	"github.com/radieske/inhouse-points/internal/shared/logger"
	"github.com/radieske/inhouse-points/internal/shared/metrics"
	"github.com/radieske/inhouse-points/internal/shared/poller"
	"github.com/radieske/inhouse-points/internal/users"
	usersrepo "github.com/radieske/inhouse-points/internal/users/repo"
	"github.com/radieske/inhouse-points/internal/wagering"
	wageringrepo "github.com/radieske/inhouse-points/internal/wagering/repo"
	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// canonical store
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := migrations.Run(pg.DB, log); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	// upstream MatchZy database, read only
	my, err := db.ConnectMySQL(db.MySQLOptions{
		Host:     cfg.MySQLHost,
		Port:     cfg.MySQLPort,
		User:     cfg.MySQLUser,
		Password: cfg.MySQLPassword,
		Database: cfg.MySQLDatabase,
		Timeout:  cfg.PollTimeout,
	})
	if err != nil {
		log.Fatal("mysql connect", zap.Error(err))
	}
	defer my.Close()
	upstream := matchzy.NewMySQL(my)

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// domain events; publishers are nil (no-op) without brokers
	pubReplicated := kafka.NewPublisher(cfg.KafkaBrokers, cfg.TopicMatchReplicated, log)
	pubAwarded := kafka.NewPublisher(cfg.KafkaBrokers, cfg.TopicPointsAwarded, log)
	pubPlaced := kafka.NewPublisher(cfg.KafkaBrokers, cfg.TopicBetPlaced, log)
	pubSettled := kafka.NewPublisher(cfg.KafkaBrokers, cfg.TopicBetsSettled, log)
	defer func() {
		for _, p := range []*kafka.Publisher{pubReplicated, pubAwarded, pubPlaced, pubSettled} {
			if err := p.Close(); err != nil {
				log.Warn("kafka close", zap.Error(err))
			}
		}
	}()
	if cfg.KafkaBrokers == "" {
		log.Info("kafka publishing disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollectors(reg)

	// Publishing never runs on the caller's goroutine: the tracker holds its lock
	// while a bet is written.
	publish := func(p *kafka.Publisher, key int64, v any) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			p.Publish(ctx, strconv.FormatInt(key, 10), v)
		}()
	}

	userStore := usersrepo.NewPostgres(pg)
	directory := users.NewDirectory(userStore)
	ledgerStore := ledger.NewStore(pg)
	matchStore := replrepo.NewPostgres(pg)

	repl := &replicator.Replicator{
		Log:    log.Named("replicator"),
		Source: upstream,
		Store:  matchStore,
		OnReplicated: func(ev events.MatchReplicated) {
			m.MatchesReplicated.Inc()
			publish(pubReplicated, ev.MatchID, ev)
		},
		OnIncomplete: m.MatchesIncomplete.Inc,
		OnError:      func(stage string) { m.ErrorsByStage.WithLabelValues(stage).Inc() },
	}

	proc := &points.Processor{
		Log:       log.Named("points"),
		Store:     pointsrepo.NewPostgres(pg),
		Directory: directory,
		Formula: points.Formula{
			Base:           cfg.Awards.Base,
			WinBonus:       cfg.Awards.WinBonus,
			KillMultiplier: cfg.Awards.KillMultiplier,
			DamageDivisor:  cfg.Awards.DamageDivisor,
		},
		OnAwarded: func(ev events.PointsAwarded) {
			m.PointEventsProcessed.Inc()
			for _, pts := range ev.Awards {
				m.PointsAwarded.Add(float64(pts))
			}
			publish(pubAwarded, ev.MatchID, ev)
		},
		OnError: func(stage string) { m.ErrorsByStage.WithLabelValues(stage).Inc() },
	}

	wager := &wagering.Service{
		Log:   log.Named("wagering"),
		Store: wageringrepo.NewPostgres(pg),
		OnPlaced: func(ev events.BetPlaced) {
			m.BetsPlaced.Inc()
			publish(pubPlaced, ev.MatchID, ev)
		},
		OnSettled: func(ev events.BetsSettled, res wagering.SettleResult) {
			if ev.Refund {
				m.BetsSettled.WithLabelValues("refunded").Add(float64(res.Settled))
			} else {
				m.BetsSettled.WithLabelValues("won").Add(float64(res.Won))
				m.BetsSettled.WithLabelValues("lost").Add(float64(res.Lost))
			}
			publish(pubSettled, ev.MatchID, ev)
		},
		OnAnomaly: m.SettlementAnomalies.Inc,
	}

	calc, err := odds.NewCalculator(odds.Params{
		Unit:         cfg.Odds.Unit,
		ShiftPerUnit: cfg.Odds.ShiftPerUnit,
		MaxSkew:      cfg.Odds.MaxSkew,
		MinMatches:   cfg.Odds.MinMatches,
	})
	if err != nil {
		log.Fatal("odds params", zap.Error(err))
	}

	broadcaster := live.NewRedisBroadcaster(redisClient, cfg.RedisLiveChannel)
	tracker := &live.Tracker{
		Log:         log.Named("live"),
		Upstream:    upstream,
		Teams:       live.NewTeamsClient(cfg.TeamsConfigURL),
		Odds:        odds.NewService(oddsrepo.NewPostgres(pg, cfg.Odds.HistoryWindow), calc),
		Wagering:    wager,
		Users:       directory,
		Broadcaster: broadcaster,
		OnState:     func(s string) { m.SetLiveState(s, live.States) },
	}
	m.SetLiveState(live.StateIdle, live.States)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := ws.NewHub(log.Named("ws"), broadcaster, func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisLiveChannel, hub, log.Named("ws"))

	api := &httpapi.API{
		Log:             log.Named("api"),
		Live:            tracker,
		Ledger:          ledgerStore,
		Wagering:        wager,
		Matches:         matchStore,
		Users:           userStore,
		Cache:           cache.NewJSON(redisClient, "inhouse:"),
		WS:              hub.HandleWS,
		AnnounceLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	apiSrv := httpapi.NewServer(cfg.HTTPPort, api.Router())

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := upstream.Ping(ctx); err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	loops := []*poller.Loop{
		{
			Name:     "replicator",
			Log:      log,
			Interval: cfg.ReplicatorInterval,
			Timeout:  cfg.PollTimeout,
			Cycle:    repl.ReplicateNewMatches,
			OnError:  m.OnError("replicator_cycle"),
		},
		{
			Name:     "points",
			Log:      log,
			Interval: cfg.PointsInterval,
			Timeout:  cfg.PollTimeout,
			Cycle:    proc.ProcessNewPointEvents,
			OnError:  m.OnError("points_cycle"),
		},
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func(l *poller.Loop) {
			defer wg.Done()
			_ = l.Run(ctx)
		}(l)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tracker.Run(ctx, cfg.LiveInterval, cfg.PollTimeout, m.OnError("live_cycle"))
	}()

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}
	wg.Wait()

	if _, ok := tracker.Session(); ok {
		log.Warn("live session dropped on shutdown; announce again after restart")
	}
	log.Info("inhouse-service stopped")
}
