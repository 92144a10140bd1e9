package hitl

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
)

// DefaultSweepSchedule is used when no schedule is given
const DefaultSweepSchedule = "@every 15m"

// Sweeper periodically reads every company's pending requests so that
// expired ones are transitioned even when nobody looks at them.
type Sweeper struct {
	manager  *Manager
	schedule string
	logger   zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a sweeper running on a cron schedule. Standard five-field
// expressions and descriptors such as "@every 15m" are accepted.
func NewSweeper(manager *Manager, schedule string, logger zerolog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		manager:  manager,
		schedule: schedule,
		logger:   logger,
	}
}

// Sweep expires overdue requests across all indexed companies and returns
// how many were transitioned
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	companies, err := s.manager.store.Members(ctx, hrflow.HITLCompaniesKey)
	if err != nil {
		return 0, fmt.Errorf("failed to list companies: %w", err)
	}

	total := 0
	for _, companyID := range companies {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		_, expired, err := s.manager.collectPending(ctx, companyID)
		total += expired
		if err != nil {
			s.logger.Error().Err(err).Str("company_id", companyID).Msg("Sweep failed for company")
		}
	}
	return total, nil
}

// Start schedules Sweep. The job uses ctx and stops running once ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("HITL sweep failed")
			return
		}
		s.logger.Debug().Int("expired", n).Msg("HITL sweep finished")
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info().Str("schedule", s.schedule).Msg("HITL sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to return
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info().Msg("HITL sweeper stopped")
}
