// Package sweeper runs the periodic pass that advances cascade offers whose
// response window lapsed without the shift being read. Lazy advancement on
// read handles the common case; the sweeper bounds how long a stale offer
// can sit unobserved.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/caregrid/caregrid/internal/domain/shift"
	"github.com/caregrid/caregrid/internal/platform/db"
)

const defaultBatchSize = 100

type Sweeper struct {
	shifts    *shift.Service
	pool      *pgxpool.Pool
	log       zerolog.Logger
	cron      *cron.Cron
	batchSize int
}

func New(shifts *shift.Service, pool *pgxpool.Pool, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		shifts:    shifts,
		pool:      pool,
		log:       log,
		cron:      cron.New(),
		batchSize: defaultBatchSize,
	}
}

// Start schedules the sweep at the given interval and begins running it.
// The first sweep fires after one interval, not immediately.
func (s *Sweeper) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.sweepAll)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", interval).Msg("offer sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("offer sweeper stopped")
}

// RunOnce sweeps every tenant a single time outside the schedule. Used by
// the CLI sweep command. Returns the total number of offers advanced.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	tenants, err := db.ListTenants(ctx, s.pool)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, tenant := range tenants {
		advanced, err := s.sweepTenant(ctx, tenant)
		if err != nil {
			return total, fmt.Errorf("sweep tenant %s: %w", tenant, err)
		}
		total += advanced
	}
	return total, nil
}

func (s *Sweeper) sweepAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	tenants, err := db.ListTenants(ctx, s.pool)
	if err != nil {
		s.log.Error().Err(err).Msg("offer sweep failed to list tenants")
		return
	}
	for _, tenant := range tenants {
		advanced, err := s.sweepTenant(ctx, tenant)
		if err != nil {
			// One tenant failing must not starve the rest.
			s.log.Error().Err(err).Str("tenant", tenant).Msg("offer sweep failed")
			continue
		}
		if advanced > 0 {
			s.log.Info().Str("tenant", tenant).Int("advanced", advanced).Msg("offer sweep advanced expired offers")
		}
	}
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenant string) (int, error) {
	tctx, release, err := db.WithTenantConn(ctx, s.pool, tenant)
	if err != nil {
		return 0, err
	}
	defer release()
	return s.shifts.SweepExpired(tctx, s.batchSize)
}
