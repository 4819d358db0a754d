package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/platesolve/internal/cache"
	"github.com/five82/platesolve/internal/logging"
	"github.com/five82/platesolve/internal/logtail"
	"github.com/five82/platesolve/internal/nova"
)

// FetchResult describes a downloaded artifact.
type FetchResult struct {
	Path   string
	Size   int
	Cached bool
}

// Fetch downloads one result file of jobID to outPath. An empty outPath
// writes <job>-<artifact><ext> in the working directory. Downloads are kept
// in the artifacts cache, so a second fetch is local.
func (a *App) Fetch(ctx context.Context, jobID int64, artifact string, outPath string) (FetchResult, error) {
	if jobID <= 0 {
		return FetchResult{}, fmt.Errorf("invalid job id %d", jobID)
	}
	kind, ok := nova.ParseArtifactType(artifact)
	if !ok {
		return FetchResult{}, fmt.Errorf("unknown artifact %q (want one of %s)", artifact, artifactList())
	}
	if strings.TrimSpace(outPath) == "" {
		outPath = fmt.Sprintf("%d-%s%s", jobID, kind, kind.Extension())
	}

	logger := a.logger.With(zap.Int64("job_id", jobID), zap.String("artifact", string(kind)))
	artifacts := a.cache.Artifacts()
	key := cache.ArtifactKey(jobID, string(kind))

	data, cached := artifacts.Get(key)
	if !cached {
		var err error
		data, err = a.client.RetrieveResult(ctx, jobID, kind)
		if err != nil {
			return FetchResult{}, logging.NewOperationError("fetch", "", err)
		}
		if err := artifacts.Put(key, data); err != nil {
			logger.Warn("artifact cache store failed", zap.Error(err))
		}
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return FetchResult{}, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return FetchResult{}, fmt.Errorf("write %s: %w", outPath, err)
	}
	logger.Info("artifact written", zap.String("path", outPath), zap.Int("bytes", len(data)), zap.Bool("cached", cached))
	return FetchResult{Path: outPath, Size: len(data), Cached: cached}, nil
}

func artifactList() string {
	names := make([]string, 0, len(nova.ArtifactTypes()))
	for _, a := range nova.ArtifactTypes() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

// ClearCache removes every cached result and artifact.
func (a *App) ClearCache() error {
	return a.cache.Clear()
}

// CacheRoot returns the cache directory in use.
func (a *App) CacheRoot() string {
	return a.cache.Root()
}

// Key returns the ContentKey of the file at path.
func Key(path string) (cache.ContentKey, error) {
	return cache.HashFile(path)
}

// Logs returns the last n entries of the log file.
func (a *App) Logs(n int) ([]logtail.Entry, error) {
	return logtail.ReadEntries(a.cfg.LogFile, n)
}
