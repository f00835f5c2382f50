package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ykvlv/discipline-bot/internal/config"
	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/scheduler"
	"github.com/ykvlv/discipline-bot/internal/session"
	"github.com/ykvlv/discipline-bot/internal/store"
	"github.com/ykvlv/discipline-bot/internal/telegram"
	"github.com/ykvlv/discipline-bot/internal/tracker"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	loc     *time.Location
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    *store.SQLiteRepo
	rdb     *redis.Client
	router  *telegram.Router
	svc     *tracker.Service
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	return &App{cfg: cfg, log: log, loc: loc, bot: bot}, nil
}

// wire builds every component on top of an opened repository.
func (a *App) wire(ctx context.Context) error {
	var sessions session.Store = session.NewMemoryStore()
	if a.cfg.RedisURL != "" {
		rdb, err := session.ConnectRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.rdb = rdb
		sessions = session.NewRedisStore(rdb)
		a.log.Info("redis sessions ready")
	}

	gate := domain.NewAccessGate(a.cfg.TrialDays, a.cfg.AdminIDs, a.loc)
	sender := telegram.NewSender(a.bot, a.log, a.cfg.SendRatePerSec)

	exec := scheduler.NewCronExecutor(a.loc, a.log)
	dispatcher := scheduler.NewDispatcher(a.repo, sender, a.log)
	planner := scheduler.NewPlanner(exec, dispatcher, a.loc, a.log)

	a.svc = tracker.New(a.repo, planner, gate, a.loc, a.log)
	a.router = telegram.NewRouter(sender, a.log, a.svc, sessions)

	jobs := scheduler.NewJobs(a.repo, a.svc, sender, a.loc, a.log)
	a.sched = scheduler.New(exec, jobs, a.log)

	a.httpSrv = &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      healthRouter(a.repo),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting discipline-bot",
		zap.String("tz", a.loc.String()),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	defer a.close()
	a.log.Info("sqlite ready")

	if err := a.wire(ctx); err != nil {
		a.log.Error("init failed", zap.Error(err))
		return err
	}

	n, err := a.svc.ReplanAll(ctx)
	if err != nil {
		a.log.Error("initial planning failed", zap.Error(err))
		return err
	}
	a.log.Info("reminders planned", zap.Int("users", n))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.serveHTTP(gctx) })
	g.Go(func() error { return a.sched.Run(gctx) })
	g.Go(func() error { return a.pollUpdates(gctx) })

	err = g.Wait()
	a.log.Info("shutdown complete")
	return err
}

func (a *App) serveHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("http server error", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()

	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	return nil
}

func (a *App) pollUpdates(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()
			return nil

		case upd, ok := <-updCh:
			if !ok {
				return nil
			}
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("redis close error", zap.Error(err))
		}
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
