package monitor

import "github.com/five82/platesolve/internal/nova"

// JobSelector picks the canonical job of a calibrated submission. nova does
// not say which of several jobs is canonical, so the choice is a policy.
type JobSelector func(status nova.SubmissionStatus) (int64, bool)

// FirstJob selects the first element of the jobs list. It is the default.
func FirstJob(status nova.SubmissionStatus) (int64, bool) {
	if len(status.Jobs) == 0 || status.Jobs[0] == 0 {
		return 0, false
	}
	return status.Jobs[0], true
}

// FirstCalibratedJob selects the job of the first calibration entry, falling
// back to FirstJob.
func FirstCalibratedJob(status nova.SubmissionStatus) (int64, bool) {
	for _, cal := range status.JobCalibrations {
		if len(cal) > 0 && cal[0] != 0 {
			return cal[0], true
		}
	}
	return FirstJob(status)
}
