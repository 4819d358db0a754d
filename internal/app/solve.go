package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/platesolve/internal/logging"
	"github.com/five82/platesolve/internal/monitor"
	"github.com/five82/platesolve/internal/notify"
	"github.com/five82/platesolve/internal/nova"
	"github.com/five82/platesolve/internal/state"
	"github.com/five82/platesolve/internal/ui"
)

const notifyTimeout = 15 * time.Second

// sessionTransport logs in right before the first upload, so cache hits never
// reach the service.
type sessionTransport struct {
	app *App
}

func (t sessionTransport) Submit(ctx context.Context, path string) (nova.SubmitResult, error) {
	if err := t.app.ensureSession(ctx); err != nil {
		return nova.SubmitResult{}, err
	}
	return t.app.client.Submit(ctx, path)
}

func (t sessionTransport) SubmissionStatus(ctx context.Context, submissionID int64) (nova.SubmissionStatus, error) {
	return t.app.client.SubmissionStatus(ctx, submissionID)
}

func (t sessionTransport) JobInfo(ctx context.Context, jobID int64) (nova.JobInfo, error) {
	return t.app.client.JobInfo(ctx, jobID)
}

// SolveOptions tune one Solve call.
type SolveOptions struct {
	// NotifyCached also notifies for results served from the cache.
	NotifyCached bool
	// Progress shows the Bubble Tea view unless the App is plain.
	Progress bool
}

// Solve plate-solves the image at path and notifies the configured sinks.
func (a *App) Solve(ctx context.Context, path string, opts SolveOptions) (monitor.Result, error) {
	runID := uuid.NewString()
	logger := logging.WithOperation(a.logger, "solve", runID)

	store := &state.Store{}
	mon, err := monitor.New(monitor.Options{
		Transport:    sessionTransport{app: a},
		Cache:        a.cache.Jobs(),
		PollInterval: a.cfg.PollInterval,
		Observer:     store,
		Logger:       logger,
	})
	if err != nil {
		return monitor.Result{}, logging.NewOperationError("solve", runID, err)
	}

	var res monitor.Result
	if opts.Progress && !a.plain {
		res, err = a.processWithProgress(ctx, mon, store, path, logger)
	} else {
		res, err = mon.Process(ctx, path)
	}

	a.notifyOutcome(ctx, path, res, err, opts.NotifyCached)
	if err != nil {
		return res, logging.NewOperationError("solve", runID, err)
	}
	return res, nil
}

func (a *App) processWithProgress(ctx context.Context, mon *monitor.Monitor, store *state.Store, path string, logger *zap.Logger) (monitor.Result, error) {
	var (
		res  monitor.Result
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, err = mon.Process(ctx, path)
	}()

	uiErr := ui.Run(ctx, ui.Options{
		Store:     store,
		Kill:      mon.Kill,
		Done:      done,
		LogFile:   a.cfg.LogFile,
		ThemeName: a.cfg.Theme,
	})
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		logger.Warn("progress view failed", zap.Error(uiErr))
	}
	<-done
	return res, err
}

// notifyOutcome sends the completion or failure message. Kills are the
// user's doing and are not reported. Send failures are logged only.
func (a *App) notifyOutcome(ctx context.Context, path string, res monitor.Result, solveErr error, notifyCached bool) {
	if a.notifier.Empty() {
		return
	}
	var msg notify.Message
	switch {
	case solveErr == nil && res.Cached && !notifyCached:
		return
	case solveErr == nil:
		solved := notify.Solved{
			Path:         path,
			JobID:        res.JobID,
			SubmissionID: res.SubmissionID,
			Cached:       res.Cached,
			Elapsed:      res.Elapsed,
		}
		if res.Info != nil {
			solved.MachineTags = res.Info.MachineTags
		}
		msg = notify.SolvedMessage(solved)
	default:
		var killed *monitor.KilledError
		if errors.As(solveErr, &killed) {
			return
		}
		msg = notify.FailedMessage(path, solveErr)
	}

	// The solve ctx may already be cancelled; notifications get their own.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := a.notifier.Notify(nctx, msg); err != nil {
		a.logger.Warn("notification failed", zap.Error(err))
	}
}

// Annotations lists the labelled objects of a solved job.
func (a *App) Annotations(ctx context.Context, jobID int64) ([]nova.Annotation, error) {
	if jobID <= 0 {
		return nil, fmt.Errorf("invalid job id %d", jobID)
	}
	annotations, err := a.client.Annotations(ctx, jobID)
	if err != nil {
		return nil, logging.NewOperationError("annotations", "", err)
	}
	return annotations, nil
}
