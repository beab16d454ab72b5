package lib

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const registryKey = "registry"

// Registry is the ordered, duplicate-free list of monitored accounts.
// Every mutation is persisted before it becomes visible.
type Registry struct {
	log *zap.Logger
	kv  KeyValueStore

	mu  sync.RWMutex
	ids []string
}

func NewRegistry(ctx context.Context, log *zap.Logger, kv KeyValueStore) (*Registry, error) {
	var stored []string
	found, err := kv.Get(ctx, registryKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if !found {
		log.Sugar().Info("No registry persisted yet, starting empty")
	}

	ids := make([]string, 0, len(stored))
	for _, id := range stored {
		if slices.Contains(ids, id) {
			log.Sugar().Warnw("Dropping duplicate account from persisted registry", "account", id)
			continue
		}
		ids = append(ids, id)
	}
	return &Registry{log: log, kv: kv, ids: ids}, nil
}

func (r *Registry) Add(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.ids, id) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	next := append(slices.Clone(r.ids), id)
	if err := r.kv.Set(ctx, registryKey, next); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	r.ids = next
	return nil
}

func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.ids, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := slices.Delete(slices.Clone(r.ids), idx, idx+1)
	if err := r.kv.Set(ctx, registryKey, next); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	r.ids = next
	return nil
}

func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.ids, id)
}

// List returns a snapshot; later mutations do not affect it.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}
