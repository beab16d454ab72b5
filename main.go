package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fiffu/livewatch/app"
	"github.com/fiffu/livewatch/config"
	"github.com/fiffu/livewatch/lib"
	"github.com/fiffu/livewatch/lib/poller"
	"github.com/fiffu/livewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(app.NewKeyValueStore),

		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(app.NewDispatcher),

		fx.Provide(app.NewRegistry),
		fx.Provide(app.NewConfigStore),
		fx.Provide(app.NewStatusClient),
		fx.Provide(lib.NewStateTracker),
		fx.Provide(lib.NewService),
		fx.Provide(app.NewPoller),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server, *poller.Poller) {}),
	).Run()
}
