// Package app wires configuration, storage and services into the API server
// and the background worker.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/checkout"
	"github.com/christianyoga13/vego/internal/domain/notification"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
	"github.com/christianyoga13/vego/internal/events"
	"github.com/christianyoga13/vego/internal/handler"
	"github.com/christianyoga13/vego/internal/redisstore"
	"github.com/christianyoga13/vego/internal/repository"
	"github.com/christianyoga13/vego/pkg/health"
	"github.com/christianyoga13/vego/pkg/httpmiddleware"
)

// infra holds the connections shared by the server and the worker.
type infra struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *events.Producer
}

func openInfra(ctx context.Context, lg *zap.Logger, cfg *Config) (*infra, error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := repository.RunMigrations(pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	in := &infra{pool: pool, redis: rdb}
	if len(cfg.Kafka.Brokers) > 0 {
		in.producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		lg.Warn("No Kafka brokers configured, checkout events are not published")
	}
	return in, nil
}

func (in *infra) Close(lg *zap.Logger) {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			lg.Warn("Close producer", zap.Error(err))
		}
	}
	if err := in.redis.Close(); err != nil {
		lg.Warn("Close redis", zap.Error(err))
	}
	in.pool.Close()
}

// services are the domain services built on infra.
type services struct {
	restaurants   *repository.RestaurantRepository
	sessions      *repository.SessionRepository
	carts         *cart.Service
	wallets       *wallet.Service
	vouchers      *voucher.Service
	checkouts     *checkout.Service
	notifications *notification.Service
}

func newServices(in *infra, cfg *Config, m *app.Telemetry) (*services, error) {
	topUp, err := cfg.topUpDefault()
	if err != nil {
		return nil, err
	}

	restaurants := repository.NewRestaurantRepository(in.pool)
	walletRepo := repository.NewWalletRepository(in.pool)
	balances := redisstore.NewBalanceNotifier(in.redis)

	s := &services{
		restaurants:   restaurants,
		sessions:      repository.NewSessionRepository(in.pool),
		carts:         cart.NewService(redisstore.NewCartStore(in.redis, redisstore.DefaultCartTTL), restaurants),
		wallets:       wallet.NewService(walletRepo, balances, topUp),
		vouchers:      voucher.NewService(repository.NewVoucherRepository(in.pool)),
		notifications: notification.NewService(repository.NewNotificationRepository(in.pool)),
	}

	deps := checkout.Deps{
		Store:          repository.NewCheckoutRepository(in.pool),
		Carts:          s.carts,
		Vouchers:       s.vouchers,
		Balances:       walletRepo,
		Notifier:       balances,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	}
	if in.producer != nil {
		deps.Events = in.producer
	}
	if s.checkouts, err = checkout.NewService(deps); err != nil {
		return nil, errors.Wrap(err, "checkout service")
	}
	return s, nil
}

// rateKey buckets authenticated requests per user and the rest per address.
func rateKey(r *http.Request) string {
	if sess, err := auth.FromContext(r.Context()); err == nil {
		return "user:" + sess.UserID
	}
	return "ip:" + httpmiddleware.RemoteIP(r)
}

// Run starts the API server and blocks until ctx is done and the server has
// drained.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	in, err := openInfra(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer in.Close(lg)

	svc, err := newServices(in, cfg, m)
	if err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", in.pool.Ping))
	healthSvc.AddReadinessCheck("redis", 5*time.Second, health.PingCheck("redis", func(ctx context.Context) error {
		return in.redis.Ping(ctx).Err()
	}))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Event streams never finish on their own; end them when shutdown starts.
	streamsDone := make(chan struct{})
	h := handler.New(handler.Config{Done: streamsDone}, handler.Deps{
		Restaurants:   svc.restaurants,
		Carts:         svc.carts,
		Checkouts:     svc.checkouts,
		Wallets:       svc.wallets,
		Vouchers:      svc.vouchers,
		Notifications: svc.notifications,
	})

	// Authenticate first so that the limiter can key by user.
	authenticate := handler.Authenticate(svc.sessions, []byte(cfg.SessionPepper))
	limit := httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: rateKey,
	})
	authn := func(next http.Handler) http.Handler {
		return authenticate(limit(next))
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", func(r chi.Router) {
		r.Use(
			httpmiddleware.Instrument("vego-api", m),
			httpmiddleware.LogRequests(),
		)
		h.Routes(r, authn)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.IdempotencyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
		),
	}

	server.RegisterOnShutdown(func() { close(streamsDone) })

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
