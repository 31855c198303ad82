// naming.go - Stored-name generation for uploaded files.
//
// A stored name is "{timestamp}_{uid}_{sanitized original}". The
// timestamp has millisecond resolution and the uid is a short random
// suffix, so two uploads of the same file in the same millisecond
// still get distinct names. Neither segment contains an underscore,
// which lets the original name be recovered from the stored one.
package server

import (
	"strings"
	"time"
)

// maxBaseNameLen caps the sanitized original name so the stored path
// stays well under filesystem path-length limits.
const maxBaseNameLen = 120

// storedNameTimeLayout has millisecond resolution.
const storedNameTimeLayout = "20060102T150405.000"

// sanitizeFilename reduces a client-supplied filename to a safe base
// name: every byte outside [A-Za-z0-9._-] becomes '_', which defeats
// path traversal ("../", absolute prefixes) and null bytes. Names that
// end up empty or all dots fall back to "file".
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == 0:
			// Drop null bytes entirely.
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if len(s) > maxBaseNameLen {
		// Keep the tail: that is where the extension lives.
		s = s[len(s)-maxBaseNameLen:]
	}
	if strings.Trim(s, ".") == "" {
		return "file"
	}
	return s
}

// storedName builds the on-disk name for an upload. uid must not
// contain an underscore.
func storedName(originalName string, now time.Time, uid string) string {
	ts := now.UTC().Format(storedNameTimeLayout)
	return ts + "_" + uid + "_" + sanitizeFilename(originalName)
}

// originalNameFromStored strips the timestamp and uid segments from a
// stored name, restoring the (sanitized) original filename. Names that
// do not follow the stored layout are returned unchanged.
func originalNameFromStored(stored string) string {
	parts := strings.SplitN(stored, "_", 3)
	if len(parts) != 3 || parts[2] == "" {
		return stored
	}
	return parts[2]
}
