package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiffu/livewatch/lib"
	"github.com/fiffu/livewatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedInterval time.Duration

func (d fixedInterval) Interval() time.Duration { return time.Duration(d) }

type staticAccounts []string

func (s staticAccounts) List() []string { return append([]string{}, s...) }

// fakeFetcher answers from a per-account script and counts calls.
type fakeFetcher struct {
	mu       sync.Mutex
	statuses map[string]models.LiveStatus
	errs     map[string]error
	calls    map[string]int
	block    chan struct{}
	started  chan string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		statuses: make(map[string]models.LiveStatus),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) models.PollOutcome {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[id]++
	status, err := f.statuses[id], f.errs[id]
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- id
	}
	if block != nil {
		<-block
	}
	return models.PollOutcome{AccountID: id, Status: status, Err: err, CompletedAt: time.Now().UTC()}
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func newTestPoller(accounts AccountLister, fetcher StatusFetcher, notifier Notifier, interval time.Duration, concurrency int) *Poller {
	tracker := lib.NewStateTracker(zap.NewNop(), lib.NewMemoryStore())
	return New(zap.NewNop(), accounts, fetcher, tracker, notifier, fixedInterval(interval), concurrency)
}

func TestRunCycle_IsolatesFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.statuses["a"] = models.LiveStatus{Online: true, Title: "hi"}
	fetcher.errs["b"] = lib.ErrNetwork
	notifier := &recordingNotifier{}

	p := newTestPoller(staticAccounts{"a", "b", "c"}, fetcher, notifier, time.Hour, 0)
	report, err := p.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Online)
	assert.Equal(t, 1, report.Offline)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, report.Alerted)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, []string{"Live: a"}, notifier.titles)
}

func TestRunCycle_EmptyRegistry(t *testing.T) {
	p := newTestPoller(staticAccounts{}, newFakeFetcher(), &recordingNotifier{}, time.Hour, 0)

	report, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
}

func TestRunCycle_BoundedConcurrency(t *testing.T) {
	ids := make(staticAccounts, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("acct-%d", i)
	}
	fetcher := newFakeFetcher()
	fetcher.started = make(chan string, len(ids))

	p := newTestPoller(ids, fetcher, &recordingNotifier{}, time.Hour, 4)
	_, err := p.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 40, fetcher.totalCalls())
	assert.LessOrEqual(t, fetcher.maxInFlight.Load(), int32(4))
}

func TestRunCycle_DropsOverlappingCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.block = make(chan struct{})
	fetcher.started = make(chan string, 1)

	p := newTestPoller(staticAccounts{"a"}, fetcher, &recordingNotifier{}, time.Hour, 0)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunCycle(context.Background())
		done <- err
	}()
	<-fetcher.started

	_, err := p.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(fetcher.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fetcher.totalCalls())
}

func TestRunCycle_UsesRegistrySnapshot(t *testing.T) {
	ctx := context.Background()
	registry, err := lib.NewRegistry(ctx, zap.NewNop(), lib.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, registry.Add(ctx, "a"))

	fetcher := newFakeFetcher()
	fetcher.block = make(chan struct{})
	fetcher.started = make(chan string, 2)

	p := newTestPoller(registry, fetcher, &recordingNotifier{}, time.Hour, 0)

	reports := make(chan *CycleReport, 1)
	go func() {
		report, _ := p.RunCycle(ctx)
		reports <- report
	}()
	<-fetcher.started

	require.NoError(t, registry.Add(ctx, "b"))
	close(fetcher.block)

	report := <-reports
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 0, fetcher.calls["b"])
}

func TestPoller_EndToEnd(t *testing.T) {
	var live atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if live.Load() {
			w.Write([]byte(`{"CHANNEL": {"RESULT": 1, "TITLE": "hello", "CATE": "talk", "BNO": "1"}}`))
			return
		}
		w.Write([]byte(`{"CHANNEL": {"RESULT": 0}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	client := lib.NewStatusClient(zap.NewNop(), nil, srv.URL, time.Second)
	notifier := &recordingNotifier{}
	p := newTestPoller(staticAccounts{"alice"}, client, notifier, time.Second, 0)

	cycles := []struct {
		online     bool
		wantAlerts int
	}{
		{true, 1},
		{true, 1},
		{false, 1},
		{true, 2},
	}
	for i, c := range cycles {
		live.Store(c.online)
		report, err := p.RunCycle(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Errored, "cycle %d", i+1)
		assert.Equal(t, c.wantAlerts, notifier.count(), "cycle %d", i+1)
	}
}

func TestPoller_StartRunsImmediately(t *testing.T) {
	fetcher := newFakeFetcher()
	p := newTestPoller(staticAccounts{"a"}, fetcher, &recordingNotifier{}, time.Hour, 0)

	require.NoError(t, p.Start())
	defer p.Stop(context.Background())

	assert.Equal(t, Armed, p.State())
	assert.ErrorIs(t, p.Start(), ErrAlreadyStarted)
	assert.Eventually(t, func() bool { return fetcher.totalCalls() == 1 }, time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.NextTick(), time.Minute)
}

func TestPoller_IntervalChangeRearms(t *testing.T) {
	fetcher := newFakeFetcher()
	p := newTestPoller(staticAccounts{"a"}, fetcher, &recordingNotifier{}, time.Hour, 0)

	require.NoError(t, p.Start())
	defer p.Stop(context.Background())
	require.Eventually(t, func() bool { return fetcher.totalCalls() == 1 }, time.Second, 10*time.Millisecond)

	changedAt := time.Now()
	p.OnIntervalChanged(100 * time.Millisecond)

	require.Eventually(t, func() bool { return fetcher.totalCalls() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Less(t, time.Since(changedAt), 2*time.Second)
}

func TestPoller_RepeatsAtInterval(t *testing.T) {
	fetcher := newFakeFetcher()
	p := newTestPoller(staticAccounts{"a"}, fetcher, &recordingNotifier{}, 50*time.Millisecond, 0)

	require.NoError(t, p.Start())
	assert.Eventually(t, func() bool { return fetcher.totalCalls() >= 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, Stopped, p.State())
	assert.True(t, p.NextTick().IsZero())

	calls := fetcher.totalCalls()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, calls, fetcher.totalCalls())

	// Stop is idempotent.
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPoller_StopWaitsForCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.block = make(chan struct{})
	fetcher.started = make(chan string, 1)
	p := newTestPoller(staticAccounts{"a"}, fetcher, &recordingNotifier{}, time.Hour, 0)

	require.NoError(t, p.Start())
	<-fetcher.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)

	close(fetcher.block)
}

func TestPoller_IntervalChangeWhileStoppedIsIgnored(t *testing.T) {
	p := newTestPoller(staticAccounts{}, newFakeFetcher(), &recordingNotifier{}, time.Hour, 0)

	p.OnIntervalChanged(time.Millisecond)
	assert.Equal(t, Stopped, p.State())
	assert.True(t, p.NextTick().IsZero())
}

func TestPoller_RemovedMidCycleStaysForgotten(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	kv := lib.NewMemoryStore()

	registry, err := lib.NewRegistry(ctx, log, kv)
	require.NoError(t, err)
	configStore, err := lib.NewConfigStore(ctx, log, kv, lib.DefaultIntervalMillis)
	require.NoError(t, err)
	tracker := lib.NewStateTracker(log, kv)
	svc := lib.NewService(log, registry, configStore, tracker)
	require.NoError(t, svc.AddAccount(ctx, "alice"))

	fetcher := newFakeFetcher()
	fetcher.statuses["alice"] = models.LiveStatus{Online: true}
	fetcher.block = make(chan struct{})
	fetcher.started = make(chan string, 1)
	notifier := &recordingNotifier{}
	p := New(log, registry, fetcher, tracker, notifier, configStore, 0)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunCycle(ctx)
		done <- err
	}()
	<-fetcher.started

	require.NoError(t, svc.RemoveAccount(ctx, "alice"))
	close(fetcher.block)
	require.NoError(t, <-done)

	assert.Zero(t, notifier.count())
	assert.Equal(t, models.NotificationState{}, tracker.State("alice"))
	var marker int64
	_, err = kv.Get(ctx, "notifiedAt:alice", &marker)
	require.NoError(t, err)
	assert.Zero(t, marker)

	fetcher.mu.Lock()
	fetcher.block, fetcher.started = nil, nil
	fetcher.mu.Unlock()

	require.NoError(t, svc.AddAccount(ctx, "alice"))
	_, err = p.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count(), "re-added account that is live alerts once")
}
