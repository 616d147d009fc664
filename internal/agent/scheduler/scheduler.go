package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"client-update-agent/internal/agent/domain"

	"go.uber.org/zap"
)

// TenantSource lists the tenants a scheduled run should visit.
type TenantSource interface {
	ConnectedTenants(ctx context.Context) ([]string, error)
}

// Runner runs the agent for one tenant.
type Runner interface {
	Run(ctx context.Context, tenantID string) (*domain.RunResult, error)
}

// RunScheduler periodically runs the agent for every connected tenant.
type RunScheduler struct {
	agent    Runner
	tenants  TenantSource
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRunScheduler creates a new scheduler
func NewRunScheduler(agent Runner, tenants TenantSource, interval time.Duration, log *zap.Logger) *RunScheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &RunScheduler{
		agent:    agent,
		tenants:  tenants,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *RunScheduler) Start() {
	s.log.Info("Starting agent run scheduler", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-s.stopChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		s.runAll(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runAll(ctx)
			case <-s.stopChan:
				s.log.Info("Agent run scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass to return.
func (s *RunScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *RunScheduler) runAll(ctx context.Context) {
	tenants, err := s.tenants.ConnectedTenants(ctx)
	if err != nil {
		s.log.Error("Failed to list connected tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		res, err := s.agent.Run(ctx, tenantID)
		if err != nil {
			if errors.Is(err, domain.ErrRunInProgress) {
				s.log.Info("Skipping tenant, run already in progress", zap.String("tenant_id", tenantID))
				continue
			}
			s.log.Error("Scheduled agent run failed", zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}
		s.log.Info("Scheduled agent run finished",
			zap.String("tenant_id", tenantID),
			zap.Int("drafted", len(res.Created)),
		)
	}
}
