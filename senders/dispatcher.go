package senders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher fans an alert out to the enabled senders. Notify never blocks
// on delivery; failures are only logged.
type Dispatcher struct {
	log     *zap.Logger
	senders Registry
	timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(log *zap.Logger, registry Registry, enabled []string, timeout time.Duration) (*Dispatcher, error) {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	selected := make(Registry)
	for _, name := range enabled {
		sender, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unsupported or unconfigured sender: %q", name)
		}
		selected[name] = sender
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("at least one sender must be enabled")
	}
	return &Dispatcher{log: log, senders: selected, timeout: timeout}, nil
}

func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.senders))
	for name := range d.senders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Notify(title, body string) {
	for name, sender := range d.senders {
		name, sender := name, sender
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			id, err := sender.Send(ctx, title, body)
			if err != nil {
				d.log.Sugar().Errorw("Failed to send alert", "sender", name, "title", title, "err", err)
				return
			}
			d.log.Sugar().Debugw("Sent alert", "sender", name, "title", title, "message_id", id)
		}()
	}
}

// Wait blocks until pending deliveries finish or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
