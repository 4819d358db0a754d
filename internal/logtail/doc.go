// Package logtail reads the tail of the platesolve log file.
//
// # Overview
//
// Read returns the last N lines of a file in one pass using a ring buffer of
// N slots, so memory stays O(N) however large the log grows. Missing files
// read as empty.
//
// Parse decodes a line written by the zap JSON encoder in internal/logging
// into an Entry: timestamp, level, logger name, message, the operation and
// run_id fields added by logging.WithOperation, and any remaining fields.
// Lines that are not JSON (a panic trace, a hand edit) are kept verbatim.
//
// Example:
//
//	entries, err := logtail.ReadEntries(cfg.LogFile, 200)
//	if err != nil {
//		return err
//	}
//	for _, e := range entries {
//		fmt.Println(e.Format())
//	}
//
// # Rendering
//
// Entry.Format gives a compact plain line. Colors are applied by the UI,
// which owns the theme.
//
// # Limits
//
// Lines longer than 1 MiB fail the scan. No rotation handling: only the
// current file is read.
package logtail
