package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStoreSave_Success(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("not actually a tarball")

	sf, err := s.Save(bytes.NewReader(payload), "backup.tar.gz", 100<<20)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if sf.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", sf.Size, len(payload))
	}
	if sf.OriginalName != "backup.tar.gz" {
		t.Errorf("OriginalName = %q", sf.OriginalName)
	}

	want := sha256.Sum256(payload)
	if sf.Digest != hex.EncodeToString(want[:]) {
		t.Errorf("Digest = %q, want %q", sf.Digest, hex.EncodeToString(want[:]))
	}

	// The file on disk is exactly the received bytes.
	got, err := os.ReadFile(filepath.Join(s.DataDir(), sf.Name))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("stored bytes differ from received bytes")
	}

	// The digest is recorded for later listings.
	if s.Digest(sf.Name) != sf.Digest {
		t.Errorf("Digest(%q) = %q", sf.Name, s.Digest(sf.Name))
	}
}

func TestStoreSave_CeilingAbortsAndCleansUp(t *testing.T) {
	s := newTestStore(t)
	payload := bytes.Repeat([]byte("x"), 1024)

	_, err := s.Save(bytes.NewReader(payload), "big.zip", 100)
	if err == nil {
		t.Fatal("oversized stream accepted")
	}
	var ue *uploadError
	if !errors.As(err, &ue) || ue.reason != reasonTooLarge {
		t.Errorf("reason = %v, want too_large", err)
	}

	// No partial file may remain under any name.
	entries, _ := os.ReadDir(s.DataDir())
	if len(entries) != 0 {
		t.Errorf("data dir not empty after abort: %v", entries)
	}
}

func TestStoreSave_ExactCeilingAccepted(t *testing.T) {
	s := newTestStore(t)
	payload := bytes.Repeat([]byte("x"), 100)

	sf, err := s.Save(bytes.NewReader(payload), "fits.zip", 100)
	if err != nil {
		t.Fatalf("Save at exact ceiling: %v", err)
	}
	if sf.Size != 100 {
		t.Errorf("Size = %d, want 100", sf.Size)
	}
}

// failingReader errors after a few bytes, like a client disconnecting
// mid-stream.
type failingReader struct {
	data []byte
	pos  int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, errors.New("connection reset")
	}
	n := copy(p, f.data[f.pos:])
	f.pos += n
	return n, nil
}

func TestStoreSave_ReadFailureCleansUp(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(&failingReader{data: []byte("partial")}, "cut.zip", 1<<20)
	if err == nil {
		t.Fatal("failed stream accepted")
	}
	var ue *uploadError
	if !errors.As(err, &ue) || ue.reason != reasonIOFailure {
		t.Errorf("reason = %v, want io_failure", err)
	}

	entries, _ := os.ReadDir(s.DataDir())
	if len(entries) != 0 {
		t.Errorf("data dir not empty after failed stream: %v", entries)
	}
}

func TestCreateExclusive_RetriesOnConflict(t *testing.T) {
	s := newTestStore(t)

	f1, name1, err := s.createExclusive("claimed.zip")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	f1.Close()

	f2, name2, err := s.createExclusive("claimed.zip")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	f2.Close()

	if name1 == name2 {
		t.Errorf("both creates claimed %q", name1)
	}
	if !strings.HasPrefix(name2, "claimed.zip-") {
		t.Errorf("retry name = %q, want counter suffix", name2)
	}
}

func TestCreateExclusive_ExhaustsRetries(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i <= nameRetryLimit; i++ {
		f, _, err := s.createExclusive("hot.zip")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		f.Close()
	}

	if _, _, err := s.createExclusive("hot.zip"); err == nil {
		t.Error("expected exhausted retries to fail")
	}
}

func TestStoreSave_ConcurrentSameName(t *testing.T) {
	s := newTestStore(t)

	const n = 16
	var wg sync.WaitGroup
	names := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sf, err := s.Save(strings.NewReader("same original name"), "clash.zip", 1<<20)
			if err != nil {
				t.Errorf("concurrent Save: %v", err)
				return
			}
			names <- sf.Name
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Fatalf("stored name %q used twice", name)
		}
		seen[name] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct files, want %d", len(seen), n)
	}
}

func TestStoreRemove_MissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Remove("never-existed.zip"); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
}

func TestStoreList_SkipsDotfilesAndDirs(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save(strings.NewReader("a"), "a.zip", 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.DataDir(), ".hidden"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(s.DataDir(), "subdir"), 0o750); err != nil {
		t.Fatal(err)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("List returned %d entries, want 1", len(infos))
	}
}
