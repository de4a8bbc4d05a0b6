package scheduler

import "time"

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval    time.Duration
	JobTimeout     time.Duration
	LockTTL        time.Duration
	EventBatchSize int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		JobTimeout:     30 * time.Second,
		LockTTL:        2 * time.Minute,
		EventBatchSize: 50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.EventBatchSize <= 0 {
		c.EventBatchSize = defaults.EventBatchSize
	}
	return c
}
