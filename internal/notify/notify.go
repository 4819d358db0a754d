package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Level tags a message for sinks that render severity.
type Level string

// Message levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message is one notification.
type Message struct {
	Subject string
	Body    string
	Level   Level
}

// Text renders the message as a single block for chat sinks.
func (m Message) Text() string {
	if m.Subject == "" {
		return m.Body
	}
	if m.Body == "" {
		return m.Subject
	}
	return m.Subject + "\n" + m.Body
}

// Sink delivers messages to one destination.
type Sink interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// SinkError names the sink that failed.
type SinkError struct {
	Sink string
	Err  error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SinkError) Unwrap() error {
	return e.Err
}

const (
	defaultTimeout  = 15 * time.Second
	defaultParallel = 4
)

// Fanout sends each message to every sink concurrently.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
}

// NewFanout builds a Fanout. Nil sinks are skipped.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{timeout: defaultTimeout, logger: logger.Named("notify")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Empty reports whether no sink is configured.
func (f *Fanout) Empty() bool {
	return f == nil || len(f.sinks) == 0
}

// Notify delivers msg to all sinks. A failing sink does not stop the others;
// every failure comes back combined as *SinkError values.
func (f *Fanout) Notify(ctx context.Context, msg Message) error {
	if f.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	g.SetLimit(defaultParallel)
	for i, sink := range f.sinks {
		g.Go(func() error {
			if err := sink.Notify(ctx, msg); err != nil {
				errs[i] = &SinkError{Sink: sink.Name(), Err: err}
				f.logger.Warn("notification failed", zap.String("sink", sink.Name()), zap.Error(err))
				return nil
			}
			f.logger.Debug("notification sent", zap.String("sink", sink.Name()))
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}
