// Command meterd serves login, entitlement metering and activity history
// over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authgin "github.com/PaulFidika/meterkit/adapters/gin"
	"github.com/PaulFidika/meterkit/adapters/ginutil"
	"github.com/PaulFidika/meterkit/audit"
	auditqueue "github.com/PaulFidika/meterkit/audit/queue"
	"github.com/PaulFidika/meterkit/config"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	migrations "github.com/PaulFidika/meterkit/migrations/postgres"
	memorylimiter "github.com/PaulFidika/meterkit/ratelimit/memory"
	redislimiter "github.com/PaulFidika/meterkit/ratelimit/redis"
	pgstore "github.com/PaulFidika/meterkit/storage/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("meterd stopped")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(cfg.LogFormat, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	key, err := jwtkit.LoadSigningKey(cfg.JWTSecret, cfg.IsProd())
	if err != nil {
		return err
	}
	codec, err := jwtkit.NewCodec(key, jwtkit.WithIssuer(cfg.JWTIssuer), jwtkit.WithTTL(cfg.AccessTokenTTL()))
	if err != nil {
		return err
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := migrations.Run(ctx, pool, log); err != nil {
		return err
	}

	activity := pgstore.NewActivityStore(pool)
	pipeline, stopQueue, err := newAuditPipeline(ctx, cfg, pool, activity, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"persist": pipeline.Persisting(), "async": cfg.AuditPersistAsync}).Info("audit pipeline ready")

	ledger := entitlements.NewLedger(
		pgstore.NewEntitlementStore(pool, cfg.EntitlementLockTimeout),
		entitlements.WithLogger(log),
	)
	svc := core.NewService(codec, ledger, identity.NewStore(pool, ""), log).WithHistory(activity)

	limiter, closeLimiter := newRateLimiter(ctx, cfg, log)
	defer closeLimiter()

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := authgin.NewRouter(authgin.Deps{
		Service:        svc,
		Gate:           core.NewGate(codec, log),
		Audit:          pipeline,
		RateLimiter:    limiter,
		DB:             pool,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "env": cfg.AppEnv}).Info("meterd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	pipeline.Wait()
	stopQueue(shutdownCtx)
	return nil
}

// newAuditPipeline wires the sink chosen by AUDIT_PERSIST_*: none, the
// activity table directly, or River jobs drained into the activity table.
func newAuditPipeline(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, activity *pgstore.ActivityStore, log logrus.FieldLogger) (*audit.Pipeline, func(context.Context), error) {
	noop := func(context.Context) {}
	opts := []audit.Option{audit.WithLogger(log), audit.WithPersist(cfg.AuditPersistEnabled)}
	if !cfg.AuditPersistEnabled || !cfg.AuditPersistAsync {
		return audit.New(activity, opts...), noop, nil
	}

	if err := auditqueue.Migrate(ctx, pool); err != nil {
		return nil, nil, err
	}
	client, err := auditqueue.NewClient(pool, activity, cfg.AuditWorkers, log)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, nil, err
	}
	stopQueue := func(ctx context.Context) {
		if err := client.Stop(ctx); err != nil {
			log.WithError(err).Warn("audit queue stop")
		}
	}
	opts = append(opts, audit.WithAsync(true))
	return audit.New(auditqueue.NewEnqueuer(client), opts...), stopQueue, nil
}

var rateLimits = map[string]struct {
	limit  int
	window time.Duration
}{
	ginutil.RLAuthLogin:          {10, time.Minute},
	ginutil.RLEntitlementConsume: {120, time.Minute},
	ginutil.RLCheckoutMockPay:    {20, time.Minute},
	ginutil.RLAdminIssue:         {60, time.Minute},
}

func newRateLimiter(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ginutil.RateLimiter, func()) {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limits := make(map[string]redislimiter.Limit, len(rateLimits))
		for name, l := range rateLimits {
			limits[name] = redislimiter.Limit{Limit: l.limit, Window: l.window}
		}
		log.WithField("addr", cfg.RedisAddr).Info("using redis rate limiter")
		return redislimiter.New(rdb, limits), func() { _ = rdb.Close() }
	}

	limits := make(map[string]memorylimiter.Limit, len(rateLimits))
	for name, l := range rateLimits {
		limits[name] = memorylimiter.Limit{Limit: l.limit, Window: l.window}
	}
	rl := memorylimiter.New(limits)
	sweepCtx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-t.C:
				rl.Sweep()
			}
		}
	}()
	return rl, cancel
}
