package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/mhartsell/gatehouse/internal/repositories"
	"github.com/mhartsell/gatehouse/internal/services"
)

// Pruner periodically clears expired transients (spent rate-limit
// counters, stale scan caches, old alert markers), ages out sync
// events, and drains any sync events an admin never came back for.
type Pruner struct {
	transients   *repositories.TransientRepository
	sync         *services.SyncService
	logger       *slog.Logger
	interval     time.Duration
	syncEventAge time.Duration
	stopCh       chan struct{}
}

// NewPruner creates a new Pruner.
func NewPruner(
	transients *repositories.TransientRepository,
	sync *services.SyncService,
	logger *slog.Logger,
	interval, syncEventAge time.Duration,
) *Pruner {
	return &Pruner{
		transients:   transients,
		sync:         sync,
		logger:       logger,
		interval:     interval,
		syncEventAge: syncEventAge,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic pruning loop. Runs once immediately.
func (p *Pruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.run(ctx)

	for {
		select {
		case <-ticker.C:
			p.run(ctx)
		case <-p.stopCh:
			p.logger.Info("pruner stopped")
			return
		case <-ctx.Done():
			p.logger.Info("pruner context cancelled")
			return
		}
	}
}

// Stop signals the pruning loop to exit.
func (p *Pruner) Stop() {
	close(p.stopCh)
}

func (p *Pruner) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := p.transients.DeleteExpired(runCtx)
	if err != nil {
		p.logger.Error("failed to delete expired transients", "error", err)
	} else if expired > 0 {
		p.logger.Info("deleted expired transients", "count", expired)
	}

	pruned, err := p.sync.PruneOlderThan(runCtx, p.syncEventAge)
	if err != nil {
		p.logger.Error("failed to prune sync events", "error", err)
	} else if pruned > 0 {
		p.logger.Info("pruned aged sync events", "count", pruned)
	}

	applied, err := p.sync.ProcessPending(runCtx)
	if err != nil {
		p.logger.Error("failed to process pending sync events", "error", err)
	} else if applied > 0 {
		p.logger.Info("processed pending sync events", "count", applied)
	}
}
