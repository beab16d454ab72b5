package app

import (
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

// transport logs every outbound request at debug level.
type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := tpt.base.RoundTrip(req)

	fields := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"elapsed_msecs", int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		tpt.log.Sugar().Debugw("Outbound request failed", append(fields, "err", err)...)
		return resp, err
	}
	tpt.log.Sugar().Debugw("Outbound request", append(fields, "status", resp.StatusCode)...)
	return resp, nil
}
