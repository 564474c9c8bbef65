// ABOUTME: Broadcast Scheduler polling for due jobs on a fixed interval
// ABOUTME: A re-entrancy flag and an optional store lease keep each due instant firing once

package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// Defaults applied by NewScheduler.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultLeaseTTL      = 2 * time.Minute
	DefaultRatePerSecond = 25
)

// leaseName is the store lease shared by every scheduler process.
const leaseName = "broadcast-scheduler"

// ErrNoSession indicates the tenant has no live bot to send through.
var ErrNoSession = errors.New("tenant bot is not running")

// Sessions resolves a tenant to its live transport client.
type Sessions interface {
	Client(tenantID string) (telegram.Client, error)
}

// Config holds scheduler settings.
type Config struct {
	PollInterval time.Duration
	// RatePerSecond paces sends and deletes across all tenants.
	RatePerSecond float64
	// UseLease serializes runs across processes through the store.
	UseLease bool
	LeaseTTL time.Duration
	// Holder names this process in the lease; defaults to a random id.
	Holder string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLimiter replaces the send pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// Scheduler fires due broadcasts and serves immediate sends and retractions.
type Scheduler struct {
	cfg      Config
	store    store.Store
	sessions Sessions
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
}

// NewScheduler creates a scheduler. Call Run to start polling.
func NewScheduler(cfg Config, st store.Store, sessions Sessions, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Holder == "" {
		cfg.Holder = uuid.NewString()
	}
	s := &Scheduler{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:   logger.With("component", "broadcast"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled, starting with an immediate pass.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("broadcast scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"rate_per_second", s.cfg.RatePerSecond,
		"lease", s.cfg.UseLease,
	)
	s.poll(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.cfg.UseLease {
				if err := s.store.ReleaseLease(context.Background(), leaseName, s.cfg.Holder); err != nil {
					s.logger.Warn("releasing scheduler lease", "error", err)
				}
			}
			s.logger.Info("broadcast scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	fired, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("broadcast poll failed", "error", err)
		return
	}
	if fired > 0 {
		s.logger.Info("broadcasts fired", "count", fired)
	}
}

// RunOnce fires every due broadcast and returns how many completed. It returns
// immediately when another pass is still running in this process, or when
// another process holds the lease.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("previous broadcast pass still running")
		return 0, nil
	}
	defer s.running.Store(false)

	now := s.now()
	if s.cfg.UseLease {
		held, err := s.store.AcquireLease(ctx, leaseName, s.cfg.Holder, s.cfg.LeaseTTL, now)
		if err != nil {
			return 0, err
		}
		if !held {
			s.logger.Debug("scheduler lease held elsewhere")
			return 0, nil
		}
	}

	due, err := s.store.ListDueBroadcasts(ctx, now)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, b := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.fire(ctx, b, now); err != nil {
			s.logger.Error("broadcast run failed; will retry on next poll",
				"broadcast_id", b.ID, "tenant_id", b.TenantID, "error", err)
			continue
		}
		fired++
	}
	return fired, nil
}

// fire runs one due job. The schedule only advances when the fan-out as a
// whole succeeded; individual recipient failures do not count.
func (s *Scheduler) fire(ctx context.Context, b *store.ScheduledBroadcast, now time.Time) error {
	tenant, err := s.store.GetTenant(ctx, b.TenantID)
	if err != nil {
		return fmt.Errorf("loading tenant: %w", err)
	}
	client, err := s.sessions.Client(tenant.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	history := &store.BroadcastHistory{
		TenantID:    tenant.ID,
		BroadcastID: b.ID,
		Message:     b.Message,
		ImageURL:    b.ImageURL,
		SentBy:      b.CreatedBy,
	}
	if err := s.deliver(ctx, client, tenant, history); err != nil {
		return err
	}

	next := NextRun(b, now, tenant.Location())
	if err := s.store.CompleteBroadcastRun(ctx, b.ID, now, next); err != nil {
		return fmt.Errorf("rescheduling: %w", err)
	}
	if next != nil {
		s.logger.Info("broadcast rescheduled", "broadcast_id", b.ID, "next_run", next.Format(time.RFC3339))
	} else {
		s.logger.Info("broadcast completed", "broadcast_id", b.ID)
	}
	return nil
}
