package lib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/livewatch/lib/models"
	"go.uber.org/zap"
)

const (
	DefaultStatusEndpoint = "https://live.afreecatv.com/afreeca/player_live_api.php"
	DefaultStatusTimeout  = 10 * time.Second

	resultOnline = 1
)

// StatusClient asks the platform whether an account is broadcasting.
type StatusClient struct {
	log       *zap.Logger
	transport http.RoundTripper
	endpoint  string
	timeout   time.Duration
}

func NewStatusClient(log *zap.Logger, transport http.RoundTripper, endpoint string, timeout time.Duration) *StatusClient {
	if endpoint == "" {
		endpoint = DefaultStatusEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &StatusClient{log, transport, endpoint, timeout}
}

type livePayload struct {
	Channel *channelPayload `json:"CHANNEL"`
}

type channelPayload struct {
	Result      any        `json:"RESULT"`
	Title       flexString `json:"TITLE"`
	Category    flexString `json:"CATE"`
	BroadcastNo flexString `json:"BNO"`
}

// flexString accepts a JSON string, number or bool. BNO in particular is
// served as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected scalar, got %s", b)
	default:
		*f = flexString(b)
	}
	return nil
}

// Fetch performs one status request. It never returns a Go error; failures
// are carried on the outcome.
func (c *StatusClient) Fetch(ctx context.Context, accountID string) models.PollOutcome {
	outcome := models.PollOutcome{AccountID: accountID, IssuedAt: time.Now().UTC()}
	outcome.Status, outcome.Err = c.fetch(ctx, accountID)
	outcome.CompletedAt = time.Now().UTC()
	return outcome
}

func (c *StatusClient) fetch(ctx context.Context, accountID string) (models.LiveStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	err := requests.URL(c.endpoint).
		Transport(c.transport).
		Post().
		BodyForm(url.Values{"bid": []string{accountID}}).
		Accept("application/json").
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.LiveStatus{}, fmt.Errorf("%s: %w: timed out after %s", accountID, ErrNetwork, c.timeout)
		}
		return models.LiveStatus{}, fmt.Errorf("%s: %w: %w", accountID, ErrNetwork, err)
	}

	return parseLiveStatus(accountID, buf.Bytes())
}

func parseLiveStatus(accountID string, body []byte) (models.LiveStatus, error) {
	var payload livePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.LiveStatus{}, fmt.Errorf("%s: %w: %w", accountID, ErrMalformedResponse, err)
	}
	if payload.Channel == nil {
		return models.LiveStatus{}, fmt.Errorf("%s: %w: no channel in response", accountID, ErrUnknownIdentifier)
	}

	ch := payload.Channel
	if code, ok := ch.Result.(float64); !ok || code != resultOnline {
		return models.LiveStatus{}, nil
	}
	return models.LiveStatus{
		Online:      true,
		Title:       PlainText(string(ch.Title)),
		Category:    PlainText(string(ch.Category)),
		BroadcastNo: string(ch.BroadcastNo),
	}, nil
}
