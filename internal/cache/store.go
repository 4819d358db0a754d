package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	appName     = "platesolve"
	fallbackDir = "~/.cache/platesolve"
	prefixLen   = 20
	tmpSuffix   = ".tmp"
)

// Options configure where the cache lives.
type Options struct {
	// Dir overrides the base directory. Empty uses the user cache directory,
	// falling back to ~/.cache/platesolve.
	Dir    string
	Logger *zap.Logger
}

// Store is the on-disk cache root. Each logical namespace is a subdirectory.
type Store struct {
	root   string
	logger *zap.Logger
}

// Open resolves the base directory and makes sure it exists.
func Open(opts Options) (*Store, error) {
	root, err := resolveRoot(opts.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: root, logger: logger.Named("cache")}, nil
}

// Root returns the base directory.
func (s *Store) Root() string {
	return s.root
}

// Namespace returns a handle on the named subdirectory. Entry files carry ext.
func (s *Store) Namespace(name, ext string) *Namespace {
	return &Namespace{
		store: s,
		name:  name,
		ext:   strings.TrimPrefix(ext, "."),
		dir:   filepath.Join(s.root, name),
	}
}

// Clear removes every entry in every namespace. A failure on one entry does
// not stop the others; all failures are returned together.
func (s *Store) Clear() error {
	children, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache dir: %w", err)
	}

	var errs error
	removed := 0
	for _, child := range children {
		path := filepath.Join(s.root, child.Name())
		if !child.IsDir() {
			if err := os.Remove(path); err != nil {
				errs = multierr.Append(errs, &CacheIOError{Op: "remove", Path: path, Err: err})
				continue
			}
			removed++
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			errs = multierr.Append(errs, &CacheIOError{Op: "list", Path: path, Err: err})
			continue
		}
		for _, entry := range entries {
			entryPath := filepath.Join(path, entry.Name())
			if err := os.Remove(entryPath); err != nil {
				errs = multierr.Append(errs, &CacheIOError{Op: "remove", Path: entryPath, Err: err})
				continue
			}
			removed++
		}
	}
	s.logger.Info("cache cleared", zap.String("root", s.root), zap.Int("removed", removed), zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}

// Namespace is one logical partition of the cache.
type Namespace struct {
	store *Store
	name  string
	ext   string
	dir   string
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// Path returns the file that holds key.
func (n *Namespace) Path(key string) string {
	return filepath.Join(n.dir, EntryFileName(key, n.ext))
}

// Get returns the bytes stored under key. Missing entries and I/O failures
// both report a miss.
func (n *Namespace) Get(key string) ([]byte, bool) {
	path := n.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			n.store.logger.Debug("cache read degraded to miss",
				zap.Error(&CacheIOError{Op: "read", Path: path, Err: err}))
		}
		return nil, false
	}
	return data, true
}

// Put stores data under key, replacing any previous value. The bytes go to a
// .tmp sibling first and are renamed over the entry so readers never see a
// partial write.
func (n *Namespace) Put(key string, data []byte) error {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return &CacheIOError{Op: "mkdir", Path: n.dir, Err: err}
	}
	path := n.Path(key)

	tmp, err := os.CreateTemp(n.dir, filepath.Base(path)+".*"+tmpSuffix)
	if err != nil {
		return &CacheIOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &CacheIOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &CacheIOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &CacheIOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return &CacheIOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// EntryFileName maps a key to its file name: a sanitized prefix of the key,
// a dash, the SHA-256 of the key and the extension.
func EntryFileName(key, ext string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])

	prefix := sanitizePrefix(key)
	name := digest
	if prefix != "" {
		name = prefix + "-" + digest
	}
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	return name
}

func sanitizePrefix(key string) string {
	if len(key) > prefixLen {
		key = key[:prefixLen]
	}
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func resolveRoot(dir string) (string, error) {
	if trimmed := strings.TrimSpace(dir); trimmed != "" {
		return expandPath(trimmed)
	}
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, appName), nil
	}
	return expandPath(fallbackDir)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
