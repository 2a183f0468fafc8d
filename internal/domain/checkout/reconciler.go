package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const reconcileBatch = 100

// Reconciler completes checkouts that were paid but whose cart was never
// cleared.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

// NewReconciler creates a Reconciler that every interval completes paid
// checkouts older than grace.
func NewReconciler(svc *Service, interval, grace time.Duration) *Reconciler {
	return &Reconciler{svc: svc, interval: interval, grace: grace, now: time.Now}
}

// Run sweeps until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.Sweep(ctx)
		if err != nil {
			lg.Error("Reconcile sweep failed", zap.Error(err))
		} else if n > 0 {
			lg.Info("Reconciled checkouts", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep completes one batch of stale checkouts and returns how many were
// completed. Individual failures are logged and left for the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stale, err := r.svc.store.ListStale(ctx, r.now().Add(-r.grace), reconcileBatch)
	if err != nil {
		return 0, errors.Wrap(err, "list stale checkouts")
	}

	done := 0
	for i := range stale {
		c := &stale[i]
		if err := r.svc.complete(ctx, c); err != nil {
			zctx.From(ctx).Warn("Reconcile checkout",
				zap.String("checkout_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		done++
	}
	return done, nil
}
