package poller

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// fixedDelay fires every d, counted from the moment it is scheduled.
// Unlike cron.Every it keeps sub-second precision.
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "err", err)...)
}

// alarmClock holds at most one repeating entry. Arm replaces it, so the
// remainder of the previous interval is discarded.
type alarmClock struct {
	cron *cron.Cron
	job  cron.Job

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

func newAlarmClock(log *zap.Logger, fn func()) *alarmClock {
	logger := cronLogger{log.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &alarmClock{cron: c, job: cron.FuncJob(fn)}
}

func (a *alarmClock) Arm(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		a.cron.Start()
		a.running = true
	}
	if a.entry != 0 {
		a.cron.Remove(a.entry)
	}
	a.entry = a.cron.Schedule(fixedDelay(interval), a.job)
}

// Disarm removes the entry and stops the scheduler. The returned context is
// done once jobs already started by the scheduler have returned.
func (a *alarmClock) Disarm() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	a.cron.Remove(a.entry)
	a.entry = 0
	a.running = false
	return a.cron.Stop()
}

func (a *alarmClock) Next() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry == 0 {
		return time.Time{}
	}
	return a.cron.Entry(a.entry).Next
}
