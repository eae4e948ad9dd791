package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/maintenance-visits/internal/config"
	"github.com/fieldops/maintenance-visits/internal/service"
)

// Runner drives the periodic background passes: contract expiration,
// missed-visit flagging and horizon materialization. Every pass is
// idempotent, so overlapping deploys running the sweep concurrently are
// safe.
type Runner struct {
	contracts  *service.ContractService
	execution  *service.ExecutionService
	scheduling *service.SchedulingService
	log        zerolog.Logger
	engine     config.EngineConfig
}

func NewRunner(contracts *service.ContractService, execution *service.ExecutionService, scheduling *service.SchedulingService, log zerolog.Logger, engine config.EngineConfig) *Runner {
	return &Runner{
		contracts:  contracts,
		execution:  execution,
		scheduling: scheduling,
		log:        log,
		engine:     engine,
	}
}

// Run executes one pass immediately, then on every tick until the
// context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.pass(ctx)

	ticker := time.NewTicker(r.engine.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("sweep runner stopped")
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	started := time.Now()

	expired, err := r.contracts.ExpireSweep(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("contract expiration sweep failed")
	}

	missed, err := r.execution.MarkMissedSweep(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("missed-visit sweep failed")
	}

	horizon := time.Now().AddDate(0, 0, r.engine.MaterializeHorizon)
	materialized, err := r.scheduling.MaterializeDue(ctx, horizon)
	if err != nil {
		r.log.Error().Err(err).Msg("horizon materialization failed")
	}

	r.log.Info().
		Int("contracts_expired", expired).
		Int64("visits_missed", missed).
		Int("visits_materialized", materialized).
		Dur("elapsed", time.Since(started)).
		Msg("sweep pass finished")
}
