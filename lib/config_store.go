package lib

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	intervalKey           = "pollIntervalMillis"
	DefaultIntervalMillis = int64(300000)
)

// ConfigStore holds the poll interval and tells listeners when it changes.
type ConfigStore struct {
	log *zap.Logger
	kv  KeyValueStore

	// setMu orders whole SetInterval calls, listeners included, so the last
	// listener call always carries the stored value.
	setMu sync.Mutex

	mu        sync.RWMutex
	millis    int64
	listeners []func(time.Duration)
}

func NewConfigStore(ctx context.Context, log *zap.Logger, kv KeyValueStore, defaultMillis int64) (*ConfigStore, error) {
	if defaultMillis <= 0 {
		defaultMillis = DefaultIntervalMillis
	}

	millis := defaultMillis
	found, err := kv.Get(ctx, intervalKey, &millis)
	if err != nil {
		return nil, fmt.Errorf("load interval: %w", err)
	}
	if found && millis <= 0 {
		return nil, fmt.Errorf("load interval: persisted value %d: %w", millis, ErrInvalidInterval)
	}
	log.Sugar().Infow("Loaded poll interval", "interval_ms", millis, "persisted", found)

	return &ConfigStore{log: log, kv: kv, millis: millis}, nil
}

func (c *ConfigStore) IntervalMillis() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.millis
}

func (c *ConfigStore) Interval() time.Duration {
	return time.Duration(c.IntervalMillis()) * time.Millisecond
}

// OnChange registers fn to be called after every successful SetInterval.
// fn must not call SetInterval.
func (c *ConfigStore) OnChange(fn func(time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *ConfigStore) SetInterval(ctx context.Context, millis int64) error {
	if millis <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, millis)
	}

	c.setMu.Lock()
	defer c.setMu.Unlock()

	c.mu.Lock()
	if err := c.kv.Set(ctx, intervalKey, millis); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("persist interval: %w", err)
	}
	c.millis = millis
	listeners := append([]func(time.Duration){}, c.listeners...)
	c.mu.Unlock()

	d := time.Duration(millis) * time.Millisecond
	for _, fn := range listeners {
		fn(d)
	}
	return nil
}
