// storage.go - Disk-backed file store with streaming ingestion.
//
// Uploads are streamed straight to their final name inside the data
// directory. The name is claimed with O_CREATE|O_EXCL so two uploads
// can never silently overwrite each other; on conflict a counter is
// appended and the create is retried. Bytes are counted and hashed
// while streaming, never buffered whole in memory, and a partial file
// is always removed before an error is surfaced.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// nameRetryLimit bounds the create-exclusive retry loop.
const nameRetryLimit = 5

// StoredFile describes a successfully persisted upload. It is created
// once on stream completion and never mutated afterwards.
type StoredFile struct {
	Name         string    // stored (on-disk) name, relative to the data dir
	OriginalName string    // sanitized client-supplied name
	Size         int64     // bytes written, equal to bytes received
	Digest       string    // hex SHA-256 of the stored bytes
	CreatedAt    time.Time // completion time
}

// Store owns the upload directory and the digests of files it wrote
// during this process run.
type Store struct {
	dataDir string

	mu      sync.Mutex
	digests map[string]string // stored name -> hex digest
}

// NewStore creates the data directory if needed and returns a Store
// rooted at it.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &Store{
		dataDir: dataDir,
		digests: make(map[string]string),
	}, nil
}

// DataDir returns the upload root.
func (s *Store) DataDir() string { return s.dataDir }

// createExclusive claims a stored name atomically. On EEXIST it
// appends an incrementing counter and retries; the check and the
// create are a single syscall, so concurrent uploads with colliding
// names cannot race each other into the same file.
func (s *Store) createExclusive(name string) (*os.File, string, error) {
	for attempt := 0; attempt <= nameRetryLimit; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", name, attempt)
		}
		f, err := os.OpenFile(filepath.Join(s.dataDir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s after %d attempts", name, nameRetryLimit)
}

// Save streams reader to a new file under the data dir, hashing and
// counting bytes on the fly. maxBytes <= 0 disables the ceiling.
//
// On success the file is flushed to disk before Save returns and the
// recorded size matches the bytes written. On any failure, including
// the ceiling tripping mid-stream, the partial file is removed and the
// data dir is left without a half-written file under the final name.
func (s *Store) Save(reader io.Reader, originalName string, maxBytes int64) (*StoredFile, error) {
	name := storedName(originalName, time.Now(), uuid.New().String()[:8])

	f, name, err := s.createExclusive(name)
	if err != nil {
		return nil, errIOFailure(err)
	}
	path := filepath.Join(s.dataDir, name)

	discard := func() {
		f.Close()
		os.Remove(path)
	}

	hasher := sha256.New()
	w := io.MultiWriter(f, hasher)

	src := reader
	if maxBytes > 0 {
		// One byte of slack: crossing the ceiling is detected by the
		// copy landing above maxBytes.
		src = io.LimitReader(reader, maxBytes+1)
	}

	size, err := io.Copy(w, src)
	if err != nil {
		discard()
		return nil, errIOFailure(err)
	}
	if maxBytes > 0 && size > maxBytes {
		discard()
		return nil, errTooLarge(maxBytes)
	}

	if err := f.Sync(); err != nil {
		discard()
		return nil, errIOFailure(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errIOFailure(err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))

	s.mu.Lock()
	s.digests[name] = digest
	s.mu.Unlock()

	return &StoredFile{
		Name:         name,
		OriginalName: sanitizeFilename(originalName),
		Size:         size,
		Digest:       digest,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Remove deletes a stored file. Removing a file that is already gone
// is not an error.
func (s *Store) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dataDir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	s.mu.Lock()
	delete(s.digests, name)
	s.mu.Unlock()
	return nil
}

// Open opens a stored file for reading. The caller closes it.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(filepath.Join(s.dataDir, name))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// Digest returns the hex SHA-256 recorded when the file was written
// during this process run, or "" if unknown.
func (s *Store) Digest(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digests[name]
}

// List returns the stored files sorted newest first. Directories and
// dotfiles are skipped.
func (s *Store) List() ([]os.FileInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) == 0 || e.Name()[0] == '.' {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModTime().After(infos[j].ModTime())
	})
	return infos, nil
}

// Count returns the number of stored files.
func (s *Store) Count() int {
	infos, err := s.List()
	if err != nil {
		return 0
	}
	return len(infos)
}
