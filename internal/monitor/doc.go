// Package monitor drives one image through the nova solve lifecycle.
//
// # States
//
//	Idle ──► Submitting ──► Polling ──► Resolving ──► Completed
//	  │           │            │            │
//	  │           └──► Failed ◄┼────────────┘
//	  │                        └──► Killed
//	  └──► Completed (cache hit, no remote calls)
//
// Process hashes the input first. When the result cache already holds the
// ContentKey, the cached job id is returned and the transport is never
// touched. Otherwise the image is submitted and the submission is polled at a
// fixed interval until nova reports a calibration. The first job id of the
// submission (see JobSelector) is resolved with a job-info call and written
// to the cache.
//
// # Cancellation
//
// Kill and cancellation of the ctx passed to Process are checked once per
// poll iteration and also wake the interval wait, so a kill is observed
// before the next remote call. Process then returns *KilledError naming the
// submission.
//
// # Failures
//
// Transport errors while submitting or resolving end in Failed and come back
// as *StageError (or *SubmissionError when nova accepted the upload without
// an id). Nothing is retried. Errors while polling are logged and treated
// like "not calibrated yet". Cache write failures are logged and do not fail
// the solve.
//
// # Time
//
// The poll wait goes through the Clock interface, so tests run the loop
// without sleeping.
package monitor
