package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/lock"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	jobProcessEvents  = "process_events"
	jobDeactivateSubs = "deactivate_subscriptions"
	lockKeyFormat     = "scheduler:lock:%s"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Events paymentdomain.Service
	Subs   subscriptiondomain.Service
	Locker *lock.Locker `optional:"true"`
	Config Config       `optional:"true"`
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	events paymentdomain.Service
	subs   subscriptiondomain.Service
	locker *lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Events == nil || p.Subs == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		events: p.Events,
		subs:   p.Subs,
		locker: p.Locker,
	}, nil
}

// RunForever ticks until the context is cancelled. Each tick runs both jobs;
// a redis lease keeps multiple instances from doubling up on the same job.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runJob(ctx, jobProcessEvents, func(ctx context.Context) error {
		n, err := s.events.ProcessBatch(ctx, s.cfg.EventBatchSize)
		if n > 0 {
			s.log.Info("events processed", zap.Int("count", n))
		}
		return err
	})
	s.runJob(ctx, jobDeactivateSubs, func(ctx context.Context) error {
		_, err := s.subs.DeactivateExpired(ctx)
		return err
	})
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	key := fmt.Sprintf(lockKeyFormat, name)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("job lock unavailable", zap.String("job", name), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			s.log.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	start := s.clock.Now()
	if err := fn(ctx); err != nil {
		s.log.Error("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("elapsed", time.Since(start)))
}
