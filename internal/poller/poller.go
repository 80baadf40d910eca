// Package poller runs the fetch, predict and publish cycle for one
// observation site and adapts its cadence to feed failures.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/overflight.report/internal/cpa"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/monitoring"
	"github.com/banshee-data/overflight.report/internal/opensky"
	"github.com/banshee-data/overflight.report/internal/pipeline"
	"github.com/banshee-data/overflight.report/internal/timeutil"
)

// MinInterval is the shortest delay between two cycles.
const MinInterval = time.Second

// subscriberBuffer is how many unread results a subscriber may lag behind
// before further results are dropped for it.
const subscriberBuffer = 4

// Fetcher supplies raw reports for a site. Implementations must abort when
// ctx is cancelled.
type Fetcher interface {
	FetchStates(ctx context.Context, site geo.Site) ([]opensky.StateVector, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, site geo.Site) ([]opensky.StateVector, error)

// FetchStates calls f.
func (f FetcherFunc) FetchStates(ctx context.Context, site geo.Site) ([]opensky.StateVector, error) {
	return f(ctx, site)
}

// Result is what one cycle publishes. Events is empty whenever Err is set.
type Result struct {
	Events      []cpa.PassEvent
	Err         error
	CompletedAt time.Time
	NextPoll    time.Duration
}

// RateLimited reports whether the cycle was refused by the feed, and for
// how long the scheduler is backing off.
func (r Result) RateLimited() (time.Duration, bool) {
	var rle *opensky.RateLimitError
	if errors.As(r.Err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger replaces the default "[poller]" logger.
func WithLogger(logf func(format string, v ...interface{})) Option {
	return func(s *Scheduler) { s.logf = logf }
}

// Scheduler polls a Fetcher for one site. At most one request is in flight
// and the next cycle is armed only after the previous one has published.
type Scheduler struct {
	fetcher Fetcher
	site    geo.Site
	base    time.Duration
	clock   timeutil.Clock
	logf    func(format string, v ...interface{})

	resultMu  sync.RWMutex
	latest    Result
	hasResult bool

	subscriberMu sync.Mutex
	subscribers  map[string]chan Result
	closed       bool

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

// New creates a scheduler for site polling every base interval. Intervals
// below MinInterval are raised to it.
func New(fetcher Fetcher, site geo.Site, base time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:     fetcher,
		site:        site,
		base:        base,
		clock:       timeutil.RealClock{},
		logf:        monitoring.Prefixed("poller"),
		subscribers: make(map[string]chan Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Site returns the site being polled.
func (s *Scheduler) Site() geo.Site {
	return s.site
}

// BaseInterval returns the effective interval between successful cycles.
func (s *Scheduler) BaseInterval() time.Duration {
	if s.base < MinInterval {
		return MinInterval
	}
	return s.base
}

// Start launches the polling loop. The first cycle runs immediately. The
// loop ends when ctx is cancelled or Stop is called. Calling Start more
// than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels any in-flight request, waits for the loop to exit and closes
// every subscriber channel. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.lifecycleMu.Lock()
		s.started = true
		cancel, done := s.cancel, s.done
		s.lifecycleMu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}

		s.subscriberMu.Lock()
		defer s.subscriberMu.Unlock()
		s.closed = true
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
	})
}

// Done is closed once the polling loop has exited. It is nil before Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.done
}

// Latest returns the most recently published result.
func (s *Scheduler) Latest() (Result, bool) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	return s.latest, s.hasResult
}

// Subscribe registers a channel that receives every future result. Results
// are dropped for a subscriber whose buffer is full.
func (s *Scheduler) Subscribe() (string, <-chan Result) {
	id := uuid.NewString()
	ch := make(chan Result, subscriberBuffer)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *Scheduler) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		next, ok := s.cycle(ctx)
		if !ok {
			return
		}

		timer := s.clock.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

// cycle performs one fetch and publish. It reports false when ctx was
// cancelled, in which case nothing is published.
func (s *Scheduler) cycle(ctx context.Context) (time.Duration, bool) {
	states, err := s.fetcher.FetchStates(ctx, s.site)
	if ctx.Err() != nil {
		return 0, false
	}

	res := Result{Events: []cpa.PassEvent{}, Err: err}
	if err == nil {
		res.Events = pipeline.ProcessReports(s.site, states)
	}
	res.NextPoll = s.nextInterval(err)
	res.CompletedAt = s.clock.Now()

	if err != nil {
		s.logf("site %q: %v; next poll in %s", s.site.Name, err, res.NextPoll)
	}

	s.publish(res)
	return res.NextPoll, true
}

func (s *Scheduler) nextInterval(err error) time.Duration {
	var rle *opensky.RateLimitError
	if errors.As(err, &rle) {
		if rle.RetryAfter < opensky.MinRetryAfter {
			return opensky.MinRetryAfter
		}
		return rle.RetryAfter
	}
	return s.BaseInterval()
}

func (s *Scheduler) publish(res Result) {
	s.resultMu.Lock()
	s.latest = res
	s.hasResult = true
	s.resultMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- res:
		default:
		}
	}
}
