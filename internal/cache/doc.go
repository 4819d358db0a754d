// Package cache persists solve results on local disk, keyed by the content of
// the input image.
//
// # Layout
//
// The base directory defaults to the platform user cache location
// (os.UserCacheDir()/platesolve) with ~/.cache/platesolve as the fallback.
// Each logical namespace is a subdirectory:
//
//	<root>/jobs/<prefix>-<sha256(key)>.json       ContentKey → job id
//	<root>/artifacts/<prefix>-<sha256(key)>.dat   downloaded result files
//
// The prefix is the first 20 characters of the key, filtered to
// [A-Za-z0-9._-].
//
// # Keys
//
// HashFile streams a file through SHA-256 in 64 KiB chunks. Two files with
// the same bytes always share a key, whatever their names.
//
// # Writes
//
// Put writes to a .tmp sibling, syncs it and renames it over the entry, so a
// reader sees either the old or the new value and never a torn one. There is
// no cross-process locking; concurrent writers to one key race and the last
// rename wins.
//
// # Failures
//
// Reads never fail: a missing, unreadable or undecodable entry is a miss.
// Clear is best-effort and returns every per-entry failure at once.
package cache
