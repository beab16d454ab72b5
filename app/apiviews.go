package app

import (
	"time"

	"github.com/fiffu/livewatch/lib/models"
)

type AccountStatusView struct {
	ID         string  `json:"id"`
	Online     bool    `json:"online"`
	NotifiedAt *string `json:"notified_at"`
}

func (view AccountStatusView) From(id string, state models.NotificationState) AccountStatusView {
	return AccountStatusView{
		ID:         id,
		Online:     state.Online,
		NotifiedAt: isoformat(state.NotifiedAt),
	}
}

type IntervalView struct {
	IntervalMillis int64 `json:"interval_ms"`
}

func isoformat(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
