// Package app is the composition root behind the platesolve commands.
//
// # Overview
//
// New turns a config.Config into an App holding the zap logger, the nova
// client, the on-disk cache and the notification fan-out. Each command is a
// method:
//
//   - Solve: one image through monitor.Monitor, optionally under the
//     Bubble Tea progress view, then notifications
//   - Fetch: one result file, served from the artifacts cache when present
//   - Annotations: labelled objects of a job
//   - Scan / Watch: every image of a directory, now and on a cron schedule
//   - ClearCache, Key, Logs: local maintenance
//
// # Data Flow
//
//	┌──────────────┐
//	│   Solve()    │
//	└──────┬───────┘
//	       ├─────> uuid run id, logging.WithOperation
//	       ├─────> monitor.New(sessionTransport, cache.Jobs(), state.Store)
//	       ├─────> Process()          (ui.Run alongside unless plain)
//	       └─────> notify.Fanout      (solved / failed, never killed)
//
// # Sessions
//
// The nova client logs in lazily, right before the first upload. A solve
// served from the cache, a fetch and an annotations call never log in; the
// API key is only required once an upload is needed.
//
// # Watch Mode
//
// Watch scans once at start and then on watch.schedule (robfig/cron syntax,
// descriptors like "@every 5m" included). Overlapping triggers are skipped
// and the initial scan shares a singleflight key with the scheduled one, so
// at most one scan runs. Images are solved one after another; cached bytes
// cost a hash and nothing else. Cancelling ctx stops the scheduler and waits
// for the scan in flight to notice.
//
// # Error Handling
//
// Command errors come back as *logging.OperationError carrying the run id,
// wrapping the typed errors of monitor and nova. Notification and cache
// write failures are logged and never fail a command.
package app
