package uws

import (
	"context"
	"time"

	"github.com/voservices/vospace/internal/logger"
)

// SweepFunc inspects one active job and advances it if its endpoint has
// been consumed, has expired, or the job is QUEUED and ready to run.
// Implemented by the transfer coordinator.
type SweepFunc func(ctx context.Context, jobID string) error

// Reconciler periodically sweeps QUEUED and EXECUTING jobs. It shares
// state with foreground requests only through the ledger, whose per-job
// update exclusion makes the sweep safe to run concurrently with client
// phase requests.
type Reconciler struct {
	ledger   *Ledger
	interval time.Duration
	sweep    SweepFunc
}

// DefaultInterval is the reconciliation polling interval used when the
// configuration supplies none.
const DefaultInterval = time.Second

// NewReconciler creates a reconciler. A non-positive interval falls back
// to DefaultInterval.
func NewReconciler(ledger *Ledger, interval time.Duration, sweep SweepFunc) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{ledger: ledger, interval: interval, sweep: sweep}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Info("Job reconciler running (interval %s)", r.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Job reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	ids, err := r.ledger.ListActive(ctx)
	if err != nil {
		logger.Error("Reconciler failed to list active jobs: %v", err)
		return
	}
	for _, id := range ids {
		if err := r.sweep(ctx, id); err != nil {
			logger.Error("Reconciler failed on job %s: %v", id, err)
		}
	}
}
