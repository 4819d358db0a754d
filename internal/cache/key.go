package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	sha256 "github.com/minio/sha256-simd"
)

// hashChunkSize bounds how much of an input file is held in memory while hashing.
const hashChunkSize = 64 * 1024

// ContentKey identifies an image by the SHA-256 digest of its bytes, hex encoded.
type ContentKey string

// String implements fmt.Stringer.
func (k ContentKey) String() string {
	return string(k)
}

// Short returns the first 12 characters of the key for log output.
func (k ContentKey) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

// Valid reports whether k looks like a hex encoded SHA-256 digest.
func (k ContentKey) Valid() bool {
	if len(k) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(string(k))
	return err == nil
}

// HashFile computes the ContentKey of the file at path. The file is streamed
// in fixed-size chunks and never loaded whole.
func HashFile(path string) (ContentKey, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	key, err := HashReader(file)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return key, nil
}

// HashReader computes the ContentKey of everything read from r.
func HashReader(r io.Reader) (ContentKey, error) {
	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = hasher.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return ContentKey(hex.EncodeToString(hasher.Sum(nil))), nil
}
