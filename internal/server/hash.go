// hash.go - SHA-256 integrity digests for stored files.
//
// The primary digest is computed inline while the upload streams to
// disk (see Store.Save); digestFile is the two-pass variant used when
// a digest is needed for a file written outside the current process.
// Both strategies produce identical digests for identical bytes.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// digestFile reads path in full and returns the hex SHA-256 of its
// contents.
func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
