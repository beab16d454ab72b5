package app

import (
	"context"
	"net/http"
	"time"

	"github.com/fiffu/livewatch/config"
	"github.com/fiffu/livewatch/lib"
	"github.com/fiffu/livewatch/lib/poller"
	"github.com/fiffu/livewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const loadTimeout = 10 * time.Second

func NewKeyValueStore(db *gorm.DB) lib.KeyValueStore {
	return lib.NewGormStore(db)
}

func NewRegistry(log *zap.Logger, kv lib.KeyValueStore) (*lib.Registry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	return lib.NewRegistry(ctx, log, kv)
}

func NewConfigStore(cfg *config.Config, log *zap.Logger, kv lib.KeyValueStore) (*lib.ConfigStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	return lib.NewConfigStore(ctx, log, kv, cfg.Poll.DefaultIntervalMillis)
}

func NewStatusClient(cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *lib.StatusClient {
	timeout := time.Duration(cfg.Poll.TimeoutSecs) * time.Second
	return lib.NewStatusClient(log, transport, cfg.Poll.Endpoint, timeout)
}

func NewDispatcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, registry senders.Registry) (*senders.Dispatcher, error) {
	timeout := time.Duration(cfg.Notify.TimeoutSecs) * time.Second
	dispatcher, err := senders.NewDispatcher(log, registry, cfg.Notify.Senders, timeout)
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Alert senders enabled", "senders", dispatcher.Names())

	lc.Append(fx.Hook{
		OnStop: dispatcher.Wait,
	})
	return dispatcher, nil
}

func NewPoller(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	registry *lib.Registry,
	client *lib.StatusClient,
	tracker *lib.StateTracker,
	dispatcher *senders.Dispatcher,
	configStore *lib.ConfigStore,
) *poller.Poller {
	p := poller.New(log, registry, client, tracker, dispatcher, configStore, cfg.Poll.Concurrency)
	configStore.OnChange(p.OnIntervalChanged)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop poller")
			return p.Stop(ctx)
		},
	})
	return p
}
