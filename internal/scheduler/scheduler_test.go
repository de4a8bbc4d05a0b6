package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/market-dot-dev/studio-sub000/internal/clock"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEvents struct {
	paymentdomain.Service
	batches []int
}

func (f *fakeEvents) ProcessBatch(_ context.Context, limit int) (int, error) {
	f.batches = append(f.batches, limit)
	return 0, nil
}

type fakeSubs struct {
	subscriptiondomain.Service
	sweeps int
}

func (f *fakeSubs) DeactivateExpired(_ context.Context) (int64, error) {
	f.sweeps++
	return 0, nil
}

func TestRunOnceRunsBothJobs(t *testing.T) {
	events := &fakeEvents{}
	subs := &fakeSubs{}

	s, err := New(Params{
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)),
		Events: events,
		Subs:   subs,
		Config: Config{EventBatchSize: 25},
	})
	require.NoError(t, err)

	s.RunOnce(context.Background())

	assert.Equal(t, []int{25}, events.batches)
	assert.Equal(t, 1, subs.sweeps)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)
	assert.Equal(t, 50, cfg.EventBatchSize)

	custom := Config{RunInterval: 5 * time.Second, EventBatchSize: 10}.withDefaults()
	assert.Equal(t, 5*time.Second, custom.RunInterval)
	assert.Equal(t, 10, custom.EventBatchSize)
	assert.Equal(t, 30*time.Second, custom.JobTimeout)
}
