package lib

import (
	"context"
	"fmt"

	"github.com/fiffu/livewatch/lib/models"
	"go.uber.org/zap"
)

// Service is the command surface used by the API. All calls are synchronous.
type Service struct {
	log      *zap.Logger
	registry *Registry
	config   *ConfigStore
	tracker  *StateTracker
}

func NewService(log *zap.Logger, registry *Registry, config *ConfigStore, tracker *StateTracker) *Service {
	return &Service{log, registry, config, tracker}
}

func (svc *Service) AddAccount(ctx context.Context, id string) error {
	if err := svc.registry.Add(ctx, id); err != nil {
		return err
	}
	svc.tracker.Track(id)
	svc.log.Sugar().Infow("Added account", "account", id)
	return nil
}

func (svc *Service) RemoveAccount(ctx context.Context, id string) error {
	if err := svc.registry.Remove(ctx, id); err != nil {
		return err
	}
	if err := svc.tracker.Forget(ctx, id); err != nil {
		svc.log.Sugar().Warnw("Removed account but failed to clear its marker", "account", id, "err", err)
	} else {
		svc.log.Sugar().Infow("Removed account", "account", id)
	}
	return nil
}

func (svc *Service) ListAccounts() []string {
	return svc.registry.List()
}

func (svc *Service) Interval() int64 {
	return svc.config.IntervalMillis()
}

func (svc *Service) SetInterval(ctx context.Context, millis int64) error {
	if err := svc.config.SetInterval(ctx, millis); err != nil {
		return err
	}
	svc.log.Sugar().Infow("Changed poll interval", "interval_ms", millis)
	return nil
}

func (svc *Service) AccountStatus(id string) (models.NotificationState, error) {
	if !svc.registry.Contains(id) {
		return models.NotificationState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return svc.tracker.State(id), nil
}
