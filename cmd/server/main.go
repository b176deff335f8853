// Command cosmetics-server starts the storefront REST API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/cosmetics-shop/internal/config"
	"github.com/and161185/cosmetics-shop/internal/httpapi"
	"github.com/and161185/cosmetics-shop/internal/jobs"
	"github.com/and161185/cosmetics-shop/internal/limiter"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/migrate"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/probe"
	"github.com/and161185/cosmetics-shop/internal/repository/postgres"
	"github.com/and161185/cosmetics-shop/internal/service"
	"github.com/and161185/cosmetics-shop/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	appName       = "Cosmetics Shop"
	attemptWindow = 15 * time.Minute
	outboxMaxAge  = 30 * 24 * time.Hour
)

// main loads configuration, runs migrations, and serves HTTP until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("env", cfg.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	accounts := postgres.NewAccountRepo(db)
	products := postgres.NewProductRepo(db)
	orders := postgres.NewOrderRepo(db)
	subs := postgres.NewNotificationRepo(db)
	box := postgres.NewOutboxRepo(db)

	lim, pgLim := newLimiter(cfg, pool, logger)

	// Mail
	transport := mailer.NewFailover(smtpOrNil("primary", cfg.SMTP), smtpOrNil("backup", cfg.SMTPBackup), logger)
	queue := outbox.NewQueue(box)
	mails := mailer.NewRenderer(appName, cfg.FrontendURL, cfg.BusinessEmail)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("order timezone", zap.Error(err))
	}

	// Services
	tokens := token.NewManager([]byte(cfg.JWTKey), cfg.TTLs)
	authSvc := service.NewAuthService(accounts, tokens, mails, queue, logger)
	catalogSvc := service.NewCatalogService(products, logger)
	orderSvc := service.NewOrderService(orders, products, accounts, mails, queue, logger, loc)
	noteSvc := service.NewNotificationService(subs, products, mails, queue, logger)
	contactSvc := service.NewContactService(mails, queue, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:          authSvc,
		Catalog:       catalogSvc,
		Orders:        orderSvc,
		Notifications: noteSvc,
		Contact:       contactSvc,
		Limits:        lim,
		Log:           logger,
		Env:           cfg.Env,
		CORSOrigins:   cfg.CORSOrigins,
		Throttle:      httpapi.NewThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst),
	})

	// Background jobs
	background := []jobs.Job{jobs.PurgeOutbox(box, outboxMaxAge, time.Now)}
	if pgLim != nil {
		background = append(background, jobs.PruneRateLimits(pgLim, attemptWindow, time.Now))
	}
	sched, err := jobs.New(ctx, logger, background...)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := probe.New(pool, 10*time.Second, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return outbox.NewWorker(box, transport, logger, cfg.Outbox).Run(gctx)
	})
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	if cfg.ProbeAddr != "" {
		g.Go(func() error { return health.Serve(gctx, cfg.ProbeAddr) })
	}

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Stop(stopCtx)

	if err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Development() {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// newLimiter returns the configured attempt store; the second value is set
// only for the Postgres store, which needs periodic pruning.
func newLimiter(cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (limiter.Store, *limiter.PG) {
	switch cfg.Limiter {
	case config.LimiterPostgres:
		pg := limiter.NewPG(pool)
		return pg, pg
	case config.LimiterRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Info("attempt limiter on redis", zap.String("addr", cfg.RedisAddr))
		return limiter.NewRedis(client, "rl:"), nil
	default:
		return limiter.NewMemory(), nil
	}
}

// smtpOrNil keeps unconfigured transports out of the failover chain.
func smtpOrNil(name string, c mailer.SMTPConfig) mailer.Transport {
	if !c.Configured() {
		return nil
	}
	return mailer.NewSMTP(name, c)
}
