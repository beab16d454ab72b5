package lib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *StateTracker, *ConfigStore) {
	t.Helper()
	kv := NewMemoryStore()
	registry := newTestRegistry(t, kv)
	config := newTestConfigStore(t, kv)
	tracker := NewStateTracker(zap.NewNop(), kv)
	return NewService(zap.NewNop(), registry, config, tracker), tracker, config
}

func TestService_Accounts(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newTestService(t)

	require.NoError(t, svc.AddAccount(ctx, "alice"))
	require.NoError(t, svc.AddAccount(ctx, "bob"))
	assert.ErrorIs(t, svc.AddAccount(ctx, "alice"), ErrAlreadyExists)
	assert.Equal(t, []string{"alice", "bob"}, svc.ListAccounts())

	require.True(t, tracker.Observe(ctx, online("alice")))
	state, err := svc.AccountStatus("alice")
	require.NoError(t, err)
	assert.True(t, state.Online)

	require.NoError(t, svc.RemoveAccount(ctx, "alice"))
	assert.ErrorIs(t, svc.RemoveAccount(ctx, "alice"), ErrNotFound)
	assert.Equal(t, []string{"bob"}, svc.ListAccounts())

	_, err = svc.AccountStatus("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, tracker.State("alice").Online)
}

func TestService_SetInterval(t *testing.T) {
	ctx := context.Background()
	svc, _, config := newTestService(t)

	var got time.Duration
	config.OnChange(func(d time.Duration) { got = d })

	assert.ErrorIs(t, svc.SetInterval(ctx, 0), ErrInvalidInterval)
	assert.Equal(t, int64(300000), svc.Interval())

	require.NoError(t, svc.SetInterval(ctx, 60000))
	assert.Equal(t, int64(60000), svc.Interval())
	assert.Equal(t, time.Minute, got)
}
