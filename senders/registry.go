package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/livewatch/config"
	"go.uber.org/zap"
)

// Sender delivers one alert and returns a delivery id when the channel has one.
type Sender interface {
	Send(ctx context.Context, subject, body string) (string, error)
}

type Registry map[string]Sender

func NewSenderRegistry(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	registry := Registry{
		"log": &logSender{base},
	}
	if cfg.Mailgun.Domain != "" {
		registry["email"] = &mailgunSender{base}
	}
	return registry
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
