package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/five82/platesolve/internal/monitor"
)

var imageExtensions = map[string]bool{
	".fits": true,
	".fit":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ScanReport counts the outcome of one directory scan.
type ScanReport struct {
	Solved int
	Cached int
	Failed int
}

// Watch scans dir now and then on the configured cron schedule until ctx is
// done. Images are solved one at a time; already solved bytes are served
// from the cache, so rescans are cheap.
func (a *App) Watch(ctx context.Context, dir string) error {
	if strings.TrimSpace(dir) == "" {
		dir = a.cfg.Watch.Dir
	}
	if strings.TrimSpace(dir) == "" {
		return errors.New("watch: no directory given (argument or watch.dir)")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch: %s is not a directory", dir)
	}

	logger := a.logger.With(zap.String("dir", dir), zap.String("schedule", a.cfg.Watch.Schedule))
	cronLog := cronLogger{logger: logger.Sugar()}
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	var group singleflight.Group
	run := func() {
		_, _, _ = group.Do("scan", func() (any, error) {
			report, err := a.Scan(ctx, dir)
			if err != nil {
				logger.Error("scan failed", zap.Error(err))
			}
			return report, err
		})
	}
	if _, err := scheduler.AddFunc(a.cfg.Watch.Schedule, run); err != nil {
		return fmt.Errorf("watch: invalid schedule %q: %w", a.cfg.Watch.Schedule, err)
	}

	logger.Info("watching directory")
	scheduler.Start()
	go run()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	// Let an initial scan still in flight finish its current image.
	_, _, _ = group.Do("scan", func() (any, error) { return nil, nil })
	logger.Info("watch stopped")
	return nil
}

// Scan solves every image in dir once, in name order.
func (a *App) Scan(ctx context.Context, dir string) (ScanReport, error) {
	images, err := listImages(dir)
	if err != nil {
		return ScanReport{}, err
	}

	var report ScanReport
	for _, path := range images {
		if ctx.Err() != nil {
			break
		}
		res, err := a.Solve(ctx, path, SolveOptions{})
		switch {
		case err != nil:
			var killed *monitor.KilledError
			if errors.As(err, &killed) {
				return report, nil
			}
			report.Failed++
		case res.Cached:
			report.Cached++
		default:
			report.Solved++
		}
	}
	a.logger.Info("scan finished",
		zap.String("dir", dir),
		zap.Int("images", len(images)),
		zap.Int("solved", report.Solved),
		zap.Int("cached", report.Cached),
		zap.Int("failed", report.Failed))
	return report, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

// cronLogger routes cron's logs through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
