package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	jobsNamespace      = "jobs"
	artifactsNamespace = "artifacts"
)

// Entry is the cached outcome of solving one image.
type Entry struct {
	JobID        int64     `json:"job_id"`
	SubmissionID int64     `json:"submission_id,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
}

// JobCache maps ContentKeys to solved job ids.
type JobCache struct {
	ns     *Namespace
	logger *zap.Logger
}

// Jobs returns the ContentKey → job id view of the store.
func (s *Store) Jobs() *JobCache {
	return &JobCache{ns: s.Namespace(jobsNamespace, "json"), logger: s.logger}
}

// Artifacts returns the namespace holding downloaded result files.
func (s *Store) Artifacts() *Namespace {
	return s.Namespace(artifactsNamespace, "dat")
}

// ArtifactKey names the artifacts entry for a job's result file.
func ArtifactKey(jobID int64, artifact string) string {
	return fmt.Sprintf("%s-%d", artifact, jobID)
}

// Lookup returns the entry stored for key. Unreadable or undecodable entries
// are reported as a miss.
func (c *JobCache) Lookup(key ContentKey) (Entry, bool) {
	data, ok := c.ns.Get(key.String())
	if !ok {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Debug("cache entry undecodable, treating as miss",
			zap.String("key", key.Short()), zap.Error(err))
		return Entry{}, false
	}
	if entry.JobID == 0 {
		return Entry{}, false
	}
	return entry, true
}

// Store records entry for key, replacing any previous value.
func (c *JobCache) Store(key ContentKey, entry Entry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.ns.Put(key.String(), data)
}
