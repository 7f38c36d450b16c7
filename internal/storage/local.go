// Package storage keeps evidence blobs on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMissing is returned when a stored blob no longer exists.
	ErrMissing = errors.New("stored file missing")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// LocalStore writes blobs under Dir.
type LocalStore struct {
	Dir string
	Now func() time.Time
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, Now: time.Now}, nil
}

// StoredName derives the on-disk name for an upload.
func (s *LocalStore) StoredName(original string) string {
	safe := unsafeChars.ReplaceAllString(filepath.Base(original), "_")
	if safe == "" || safe == "." || safe == ".." {
		safe = "file"
	}
	return fmt.Sprintf("%d-%s-%s", s.Now().UnixNano(), uuid.NewString()[:8], safe)
}

// Save copies r to a new file and returns its location and size. Uploads
// larger than maxBytes are removed and reported as ErrTooLarge. A maxBytes of
// zero disables the limit.
func (s *LocalStore) Save(original string, r io.Reader, maxBytes int64) (string, int64, error) {
	location := filepath.Join(s.Dir, s.StoredName(original))
	f, err := os.OpenFile(location, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create stored file: %w", err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(location)
		return "", 0, fmt.Errorf("write stored file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(location)
		return "", 0, fmt.Errorf("close stored file: %w", closeErr)
	case maxBytes > 0 && written > maxBytes:
		_ = os.Remove(location)
		return "", 0, ErrTooLarge
	}
	return location, written, nil
}

// Open returns a reader for a stored blob.
func (s *LocalStore) Open(location string) (io.ReadCloser, error) {
	if err := s.contains(location); err != nil {
		return nil, err
	}
	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMissing
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes a stored blob. A blob that is already gone is not an error.
func (s *LocalStore) Remove(location string) error {
	if err := s.contains(location); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) contains(location string) error {
	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(location)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(target, dir+string(filepath.Separator)) {
		return fmt.Errorf("location %q outside upload dir", location)
	}
	return nil
}
