// Package fs provides a content-addressed filesystem object store for
// raw document bytes.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// ObjectStore stores objects under dir, keyed by the SHA-256 of their
// content. Handles look like "ab/abcdef...". Writing the same bytes
// twice yields the same handle.
type ObjectStore struct {
	dir string
}

var _ driven.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore creates an object store rooted at dir. If dir is
// empty, defaults to ~/.docsage/data/objects.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docsage", "data", "objects")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating object directory: %w", err)
	}
	return &ObjectStore{dir: dir}, nil
}

// Put stores the bytes read from r and returns the content hash as the
// handle. The bytes are spooled to a temp file first so the hash is
// known before the final name is chosen.
func (s *ObjectStore) Put(_ context.Context, r io.Reader) (string, error) {
	tmp := filepath.Join(s.dir, "tmp-"+uuid.New().String())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("creating temp object: %w", err)
	}

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, hash), r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("closing object: %w", err)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	handle := sum[:2] + "/" + sum

	final := filepath.Join(s.dir, filepath.FromSlash(handle))
	if err := os.MkdirAll(filepath.Dir(final), 0700); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("creating object shard: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("storing object: %w", err)
	}
	return handle, nil
}

// Get opens the stored bytes for a handle.
func (s *ObjectStore) Get(_ context.Context, handle string) (io.ReadSeekCloser, error) {
	path, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", handle, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("opening object: %w", err)
	}
	return f, nil
}

// Delete removes the stored bytes. Unknown handles are a no-op.
func (s *ObjectStore) Delete(_ context.Context, handle string) error {
	path, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// resolve validates a handle and maps it to a path under dir. Handles
// came from Put, but they also round-trip through the database, so the
// shape is checked before touching the filesystem.
func (s *ObjectStore) resolve(handle string) (string, error) {
	shard, sum, ok := strings.Cut(handle, "/")
	if !ok || len(shard) != 2 || len(sum) != 64 || !isHex(shard) || !isHex(sum) {
		return "", fmt.Errorf("malformed object handle %q: %w", handle, domain.ErrInvalidArgument)
	}
	return filepath.Join(s.dir, shard, sum), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
