package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/platesolve/internal/cache"
	"github.com/five82/platesolve/internal/nova"
)

// Poll cadence bounds. The interval is a tunable; config clamps user input to
// [MinPollInterval, MaxPollInterval].
const (
	DefaultPollInterval = 3 * time.Second
	MinPollInterval     = 2 * time.Second
	MaxPollInterval     = 5 * time.Second
)

// Transport is the part of the nova API the monitor drives.
type Transport interface {
	Submit(ctx context.Context, path string) (nova.SubmitResult, error)
	SubmissionStatus(ctx context.Context, submissionID int64) (nova.SubmissionStatus, error)
	JobInfo(ctx context.Context, jobID int64) (nova.JobInfo, error)
}

// ResultCache maps content keys to solved jobs. *cache.JobCache implements it.
type ResultCache interface {
	Lookup(key cache.ContentKey) (cache.Entry, bool)
	Store(key cache.ContentKey, entry cache.Entry) error
}

var _ ResultCache = (*cache.JobCache)(nil)

// Event describes the monitor after a transition, or a poll while Polling.
type Event struct {
	State        State
	Path         string
	Key          cache.ContentKey
	SubmissionID int64
	JobID        int64
	Polls        int
	Cached       bool
	Err          error
	At           time.Time
}

// Observer receives every Event. Observe runs on the Process goroutine and
// must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Options configure a Monitor. Transport is required.
type Options struct {
	Transport    Transport
	Cache        ResultCache
	Hash         func(path string) (cache.ContentKey, error)
	Clock        Clock
	PollInterval time.Duration
	SelectJob    JobSelector
	Observer     Observer
	Logger       *zap.Logger
}

// Result is the outcome of one Process call.
type Result struct {
	Path         string
	Key          cache.ContentKey
	SubmissionID int64
	JobID        int64
	Info         *nova.JobInfo
	Cached       bool
	Polls        int
	Elapsed      time.Duration
}

// Monitor drives one image at a time through submit, poll and resolve.
// Process calls on the same Monitor are serialized.
type Monitor struct {
	transport Transport
	cache     ResultCache
	hash      func(path string) (cache.ContentKey, error)
	clock     Clock
	interval  time.Duration
	selectJob JobSelector
	observer  Observer
	logger    *zap.Logger

	run sync.Mutex

	mu       sync.Mutex
	state    State
	killCh   chan struct{}
	killOnce *sync.Once
}

// New builds a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Transport == nil {
		return nil, errors.New("monitor: transport is required")
	}
	m := &Monitor{
		transport: opts.Transport,
		cache:     opts.Cache,
		hash:      opts.Hash,
		clock:     opts.Clock,
		interval:  opts.PollInterval,
		selectJob: opts.SelectJob,
		observer:  opts.Observer,
		logger:    opts.Logger,
		killCh:    make(chan struct{}),
		killOnce:  &sync.Once{},
	}
	if m.cache == nil {
		m.cache = noCache{}
	}
	if m.hash == nil {
		m.hash = cache.HashFile
	}
	if m.clock == nil {
		m.clock = RealClock()
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.selectJob == nil {
		m.selectJob = FirstJob
	}
	if m.observer == nil {
		m.observer = ObserverFunc(func(Event) {})
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("monitor")
	return m, nil
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Kill stops the solve in progress. It is safe from any goroutine. The poll
// loop notices it at its next iteration, so latency is at most one interval.
// A killed Monitor stays killed until Reset.
func (m *Monitor) Kill() {
	m.mu.Lock()
	once, ch := m.killOnce, m.killCh
	m.mu.Unlock()
	once.Do(func() { close(ch) })
}

// Killed reports whether Kill has been called since the last Reset.
func (m *Monitor) Killed() bool {
	m.mu.Lock()
	ch := m.killCh
	m.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Reset re-arms a killed Monitor. It waits for a running Process to return.
func (m *Monitor) Reset() {
	m.run.Lock()
	defer m.run.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killCh = make(chan struct{})
	m.killOnce = &sync.Once{}
	m.state = Idle
}

// Process solves the image at path and returns its job id. A cached result
// for the same bytes is returned without any transport call. Cancelling ctx
// stops the poll loop like Kill does.
func (m *Monitor) Process(ctx context.Context, path string) (Result, error) {
	m.run.Lock()
	defer m.run.Unlock()

	start := m.clock.Now()
	ev := Event{Path: path}
	m.setState(Idle)
	logger := m.logger.With(zap.String("path", path))

	result := func() Result {
		return Result{
			Path:         path,
			Key:          ev.Key,
			SubmissionID: ev.SubmissionID,
			JobID:        ev.JobID,
			Cached:       ev.Cached,
			Polls:        ev.Polls,
			Elapsed:      m.clock.Now().Sub(start),
		}
	}

	key, err := m.hash(path)
	if err != nil {
		return result(), m.fail(ev, &StageError{Stage: StageSubmit, Path: path, Err: fmt.Errorf("hash input: %w", err)})
	}
	ev.Key = key
	logger = logger.With(zap.String("key", key.Short()))

	if entry, ok := m.cache.Lookup(key); ok {
		ev.JobID = entry.JobID
		ev.SubmissionID = entry.SubmissionID
		ev.Cached = true
		logger.Info("cache hit, skipping submission", zap.Int64("job_id", entry.JobID))
		m.transition(Completed, ev)
		return result(), nil
	}

	if m.Killed() {
		return result(), m.kill(ev, &KilledError{})
	}

	m.transition(Submitting, ev)
	sub, err := m.transport.Submit(ctx, path)
	if err != nil {
		return result(), m.fail(ev, &StageError{Stage: StageSubmit, Path: path, Err: err})
	}
	if sub.SubmissionID == 0 {
		return result(), m.fail(ev, &SubmissionError{Path: path, Status: sub.Status})
	}
	ev.SubmissionID = sub.SubmissionID
	logger = logger.With(zap.Int64("submission_id", sub.SubmissionID))
	logger.Info("submission accepted")

	status, err := m.poll(ctx, &ev, logger)
	if err != nil {
		return result(), m.kill(ev, err)
	}

	m.transition(Resolving, ev)
	jobID, ok := m.selectJob(status)
	if !ok {
		return result(), m.fail(ev, &StageError{Stage: StageResolve, Path: path, SubmissionID: ev.SubmissionID, Err: ErrNoJob})
	}
	ev.JobID = jobID
	info, err := m.transport.JobInfo(ctx, jobID)
	if err != nil {
		return result(), m.fail(ev, &StageError{Stage: StageResolve, Path: path, SubmissionID: ev.SubmissionID, JobID: jobID, Err: err})
	}

	entry := cache.Entry{JobID: jobID, SubmissionID: ev.SubmissionID, StoredAt: m.clock.Now().UTC()}
	if err := m.cache.Store(key, entry); err != nil {
		logger.Warn("cache store failed", zap.Error(err))
	}

	logger.Info("submission solved",
		zap.Int64("job_id", jobID),
		zap.Strings("machine_tags", info.MachineTags),
		zap.Int("polls", ev.Polls))
	m.transition(Completed, ev)

	res := result()
	res.Info = &info
	return res, nil
}

// poll asks for the submission status once per interval until a calibration
// shows up. Status errors count as "not calibrated yet".
func (m *Monitor) poll(ctx context.Context, ev *Event, logger *zap.Logger) (nova.SubmissionStatus, error) {
	m.transition(Polling, *ev)
	for {
		if err := m.stopCause(ctx, ev.SubmissionID); err != nil {
			return nova.SubmissionStatus{}, err
		}

		status, err := m.transport.SubmissionStatus(ctx, ev.SubmissionID)
		ev.Polls++
		switch {
		case err != nil:
			logger.Warn("status poll failed", zap.Int("poll", ev.Polls), zap.Error(err))
			failed := *ev
			failed.Err = err
			m.emit(Polling, failed)
		case status.Calibrated():
			if err := m.stopCause(ctx, ev.SubmissionID); err != nil {
				return nova.SubmissionStatus{}, err
			}
			return status, nil
		default:
			logger.Debug("not calibrated yet", zap.Int("poll", ev.Polls), zap.Int("jobs", len(status.Jobs)))
			m.emit(Polling, *ev)
		}

		m.mu.Lock()
		killCh := m.killCh
		m.mu.Unlock()
		select {
		case <-killCh:
		case <-ctx.Done():
		case <-m.clock.After(m.interval):
		}
	}
}

func (m *Monitor) stopCause(ctx context.Context, submissionID int64) error {
	if m.Killed() {
		return &KilledError{SubmissionID: submissionID}
	}
	if err := ctx.Err(); err != nil {
		return &KilledError{SubmissionID: submissionID, Cause: err}
	}
	return nil
}

func (m *Monitor) fail(ev Event, err error) error {
	ev.Err = err
	m.logger.Error("solve failed", zap.String("path", ev.Path), zap.Error(err))
	m.transition(Failed, ev)
	return err
}

func (m *Monitor) kill(ev Event, err error) error {
	var killed *KilledError
	if errors.As(err, &killed) && killed.SubmissionID == 0 {
		killed.SubmissionID = ev.SubmissionID
	}
	ev.Err = err
	m.logger.Warn("solve killed", zap.String("path", ev.Path), zap.Int64("submission_id", ev.SubmissionID))
	m.transition(Killed, ev)
	return err
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Monitor) transition(s State, ev Event) {
	m.setState(s)
	m.logger.Debug("state changed", zap.String("state", s.String()), zap.String("path", ev.Path))
	m.emit(s, ev)
}

func (m *Monitor) emit(s State, ev Event) {
	ev.State = s
	ev.At = m.clock.Now()
	m.observer.Observe(ev)
}

type noCache struct{}

func (noCache) Lookup(cache.ContentKey) (cache.Entry, bool) { return cache.Entry{}, false }
func (noCache) Store(cache.ContentKey, cache.Entry) error   { return nil }
