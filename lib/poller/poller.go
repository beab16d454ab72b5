package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiffu/livewatch/lib/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 16

var (
	ErrCycleInProgress = errors.New("poll cycle already in progress")
	ErrAlreadyStarted  = errors.New("poller already started")
)

type AccountLister interface {
	List() []string
}

type StatusFetcher interface {
	Fetch(ctx context.Context, accountID string) models.PollOutcome
}

type OutcomeObserver interface {
	Observe(ctx context.Context, outcome models.PollOutcome) bool
}

type Notifier interface {
	Notify(title, body string)
}

type IntervalSource interface {
	Interval() time.Duration
}

type State int

const (
	Stopped State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "stopped"
}

// Poller runs poll cycles on a re-armable timer. A tick that arrives while
// a cycle is still running is dropped rather than queued.
type Poller struct {
	log         *zap.Logger
	accounts    AccountLister
	fetcher     StatusFetcher
	tracker     OutcomeObserver
	notifier    Notifier
	intervals   IntervalSource
	concurrency int

	clock   *alarmClock
	cycleMu sync.Mutex
	seq     atomic.Uint64

	mu     sync.Mutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	log *zap.Logger,
	accounts AccountLister,
	fetcher StatusFetcher,
	tracker OutcomeObserver,
	notifier Notifier,
	intervals IntervalSource,
	concurrency int,
) *Poller {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	p := &Poller{
		log:         log,
		accounts:    accounts,
		fetcher:     fetcher,
		tracker:     tracker,
		notifier:    notifier,
		intervals:   intervals,
		concurrency: concurrency,
	}
	p.clock = newAlarmClock(log, p.tick)
	return p
}

// Start arms the timer at the current interval and runs the first cycle
// straight away instead of waiting for the first tick.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Armed {
		return ErrAlreadyStarted
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	interval := p.intervals.Interval()
	p.clock.Arm(interval)
	p.state = Armed
	p.log.Sugar().Infow("Poller started", "interval_ms", interval.Milliseconds(), "concurrency", p.concurrency)

	go p.tick()
	return nil
}

// OnIntervalChanged re-arms the timer at interval, counting from now.
// In-flight fetches are left alone.
func (p *Poller) OnIntervalChanged(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Armed {
		return
	}
	p.clock.Arm(interval)
	p.log.Sugar().Infow("Poller re-armed", "interval_ms", interval.Milliseconds())
}

// Stop disarms the timer and waits for an in-flight cycle to finish, or for
// ctx to expire, whichever is first. Calling Stop on a stopped poller is a no-op.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state == Stopped {
		p.mu.Unlock()
		return nil
	}
	p.state = Stopped
	cronDone := p.clock.Disarm()
	cancel := p.cancel
	p.mu.Unlock()
	defer cancel()

	cycleDone := make(chan struct{})
	go func() {
		<-cronDone.Done()
		p.cycleMu.Lock()
		p.cycleMu.Unlock()
		close(cycleDone)
	}()

	select {
	case <-cycleDone:
		p.log.Sugar().Info("Poller stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for poll cycle: %w", ctx.Err())
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// NextTick reports when the timer fires next, zero when stopped.
func (p *Poller) NextTick() time.Time {
	return p.clock.Next()
}

func (p *Poller) tick() {
	p.mu.Lock()
	if p.state != Armed {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	if _, err := p.RunCycle(ctx); errors.Is(err, ErrCycleInProgress) {
		p.log.Sugar().Warn("Previous poll cycle still running, skipping this tick")
	}
}

// RunCycle checks every account in a snapshot of the registry. Outcomes are
// applied as they arrive; one account failing does not affect the others.
// It returns once every fetch has been applied.
func (p *Poller) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !p.cycleMu.TryLock() {
		cyclesTotal.WithLabelValues("dropped").Inc()
		return nil, ErrCycleInProgress
	}
	defer p.cycleMu.Unlock()

	report := &CycleReport{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	accounts := p.accounts.List()
	report.Total = len(accounts)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, id := range accounts {
		id := id
		seq := p.seq.Add(1)
		g.Go(func() error {
			outcome := p.fetcher.Fetch(ctx, id)
			outcome.Seq = seq

			alerted := p.tracker.Observe(ctx, outcome)
			if alerted {
				alert := models.AlertFor(id, outcome.Status)
				p.notifier.Notify(alert.Title, alert.Body)
			}

			mu.Lock()
			report.add(outcome, alerted)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.Elapsed = time.Since(report.StartedAt)
	cyclesTotal.WithLabelValues("completed").Inc()
	cycleDuration.Observe(report.Elapsed.Seconds())

	if report.Total == 0 {
		p.log.Sugar().Infow("No accounts registered", "cycle_id", report.ID)
	} else {
		p.log.Sugar().Infow(fmt.Sprintf("Processed %d accounts", report.Total), report.logArgs()...)
	}
	return report, nil
}
