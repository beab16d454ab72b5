package lib

import (
	"context"
	"sync"
	"time"

	"github.com/fiffu/livewatch/lib/models"
	"go.uber.org/zap"
)

const notifiedAtKeyPrefix = "notifiedAt:"

func notifiedAtKey(accountID string) string {
	return notifiedAtKeyPrefix + accountID
}

type trackedState struct {
	models.NotificationState
	lastSeq uint64
}

// StateTracker owns the online/offline state of every polled account and
// decides when an alert is owed: once, on the first online observation of
// each online run.
type StateTracker struct {
	log *zap.Logger
	kv  KeyValueStore

	mu     sync.Mutex
	states map[string]*trackedState
	// forgotten holds removed accounts until they are tracked again. Late
	// outcomes for them are dropped.
	forgotten map[string]struct{}
}

func NewStateTracker(log *zap.Logger, kv KeyValueStore) *StateTracker {
	return &StateTracker{
		log:       log,
		kv:        kv,
		states:    make(map[string]*trackedState),
		forgotten: make(map[string]struct{}),
	}
}

// Observe applies one outcome and reports whether an alert must fire.
func (t *StateTracker) Observe(ctx context.Context, o models.PollOutcome) bool {
	if !o.Ok() {
		t.log.Sugar().Warnw("Status check failed", "account", o.AccountID, "err", o.Err)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, gone := t.forgotten[o.AccountID]; gone {
		t.log.Sugar().Infow("Discarding outcome for removed account", "account", o.AccountID, "seq", o.Seq)
		return false
	}

	st := t.load(ctx, o.AccountID)
	if o.Seq != 0 {
		if o.Seq <= st.lastSeq {
			t.log.Sugar().Infow("Discarding stale outcome", "account", o.AccountID, "seq", o.Seq, "last_seq", st.lastSeq)
			return false
		}
		st.lastSeq = o.Seq
	}

	if !o.Status.Online {
		hadMarker := st.Notified()
		st.Online = false
		st.NotifiedAt = time.Time{}
		if hadMarker {
			t.persist(ctx, o.AccountID, 0)
		}
		return false
	}

	if st.Online {
		return false
	}

	now := o.CompletedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	st.Online = true
	st.NotifiedAt = now
	t.persist(ctx, o.AccountID, now.UnixMilli())
	return true
}

// State returns the current state of an account, defaulting to offline.
func (t *StateTracker) State(accountID string) models.NotificationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.states[accountID]; ok {
		return st.NotificationState
	}
	return models.NotificationState{}
}

// Forget drops everything known about an account, including its persisted
// marker. Outcomes for it are ignored until Track is called, so a fetch that
// was in flight when the account was removed cannot bring its state back.
func (t *StateTracker) Forget(ctx context.Context, accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, accountID)
	t.forgotten[accountID] = struct{}{}
	return t.kv.Set(ctx, notifiedAtKey(accountID), int64(0))
}

// Track resumes observing an account after Forget. It starts from offline.
func (t *StateTracker) Track(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.forgotten, accountID)
}

// load must be called with t.mu held.
func (t *StateTracker) load(ctx context.Context, accountID string) *trackedState {
	if st, ok := t.states[accountID]; ok {
		return st
	}

	st := &trackedState{}
	var marker int64
	found, err := t.kv.Get(ctx, notifiedAtKey(accountID), &marker)
	switch {
	case err != nil:
		t.log.Sugar().Errorw("Failed to read notification marker, assuming offline", "account", accountID, "err", err)
	case found && marker > 0:
		st.Online = true
		st.NotifiedAt = time.UnixMilli(marker).UTC()
	}
	t.states[accountID] = st
	return st
}

func (t *StateTracker) persist(ctx context.Context, accountID string, marker int64) {
	if err := t.kv.Set(ctx, notifiedAtKey(accountID), marker); err != nil {
		t.log.Sugar().Errorw("Failed to persist notification marker", "account", accountID, "err", err)
	}
}
