package models

import "time"

// LiveStatus is the result of one status check. The zero value is offline.
type LiveStatus struct {
	Online      bool
	Title       string
	Category    string
	BroadcastNo string
}

// PollOutcome is a single fetch result for one account. Err is nil on success.
type PollOutcome struct {
	AccountID   string
	Status      LiveStatus
	Err         error
	Seq         uint64 // fetch sequence number, assigned when the fetch is issued
	IssuedAt    time.Time
	CompletedAt time.Time
}

func (o PollOutcome) Ok() bool {
	return o.Err == nil
}

// NotificationState is what we remember per account between polls.
// The zero value means offline and nothing owed.
type NotificationState struct {
	Online     bool
	NotifiedAt time.Time
}

func (s NotificationState) Notified() bool {
	return !s.NotifiedAt.IsZero()
}
