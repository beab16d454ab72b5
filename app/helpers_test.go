package app

import (
	"time"

	"github.com/fiffu/livewatch/lib/models"
)

func onlineOutcome(id string) models.PollOutcome {
	return models.PollOutcome{
		AccountID:   id,
		Status:      models.LiveStatus{Online: true},
		CompletedAt: time.Now().UTC(),
	}
}
