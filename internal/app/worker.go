package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/christianyoga13/vego/internal/domain/checkout"
	"github.com/christianyoga13/vego/internal/events"
)

// RunWorker runs the background jobs: the sweep that completes paid
// checkouts and, when Kafka is configured, the consumer that turns checkout
// events into notifications.
func RunWorker(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	in, err := openInfra(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer in.Close(lg)

	svc, err := newServices(in, cfg, m)
	if err != nil {
		return err
	}

	ctx = zctx.Base(ctx, lg)
	g, ctx := errgroup.WithContext(ctx)

	reconciler := checkout.NewReconciler(svc.checkouts, cfg.Reconcile.Interval, cfg.Reconcile.Grace)
	g.Go(func() error {
		lg.Info("Reconciler started",
			zap.Duration("interval", cfg.Reconcile.Interval),
			zap.Duration("grace", cfg.Reconcile.Grace),
		)
		return reconciler.Run(ctx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		g.Go(func() error {
			defer func() {
				if err := consumer.Close(); err != nil {
					lg.Warn("Close consumer", zap.Error(err))
				}
			}()
			lg.Info("Notification consumer started",
				zap.String("topic", cfg.Kafka.Topic),
				zap.String("group_id", cfg.Kafka.GroupID),
			)
			if err := consumer.Consume(ctx, svc.notifications.HandleCheckoutCompleted); err != nil {
				return errors.Wrap(err, "consume checkout events")
			}
			return nil
		})
	}

	return g.Wait()
}
