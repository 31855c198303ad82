// validation.go - Pre-stream validation of incoming uploads.
package server

import (
	"path/filepath"
	"strings"
)

// ValidationPolicy decides whether an upload is acceptable before (and
// while) its bytes are written. Immutable after construction.
type ValidationPolicy struct {
	// AllowedExtensions is the set of acceptable extensions, lower
	// case with leading dot (".zip", ".tar.gz").
	AllowedExtensions map[string]bool

	// AllowedContentTypes restricts the declared MIME type when
	// non-nil; nil means extension-only checking.
	AllowedContentTypes map[string]bool

	// LenientContentType downgrades a content-type membership failure
	// to a warning log. Browsers routinely mislabel archive MIME
	// types, so this defaults to on for archive policies.
	LenientContentType bool

	// MaxBytes is the upload size ceiling; <= 0 disables it.
	MaxBytes int64
}

// defaultExtensions matches the archive formats the service exists to
// carry.
func defaultExtensions() map[string]bool {
	return map[string]bool{
		".zip": true, ".rar": true, ".7z": true, ".tar": true,
		".gz": true, ".tar.gz": true, ".bz2": true, ".xz": true,
	}
}

// fileExtension extracts the lower-cased extension of name. The last
// dot wins, except for a literal trailing ".tar.gz", which counts as a
// single two-part extension.
func fileExtension(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	return filepath.Ext(lower)
}

// validateUpload checks the declared filename, content type, and
// length against the policy. The byte ceiling is re-enforced during
// streaming; the declared length may be absent (<= 0) or forged.
func (p ValidationPolicy) validateUpload(filename, contentType string, declaredLen int64) error {
	ext := fileExtension(filename)
	if !p.AllowedExtensions[ext] {
		if ext == "" {
			return errUnsupportedType("(no extension)")
		}
		return errUnsupportedType(ext)
	}

	if p.AllowedContentTypes != nil && contentType != "" {
		mt := contentType
		if idx := strings.Index(mt, ";"); idx > 0 {
			mt = mt[:idx]
		}
		mt = strings.ToLower(strings.TrimSpace(mt))

		if !p.AllowedContentTypes[mt] {
			if !p.LenientContentType {
				return errUnsupportedType(mt)
			}
			Warn("content_type_mismatch", map[string]any{
				"filename":     filename,
				"content_type": mt,
			})
		}
	}

	if p.MaxBytes > 0 && declaredLen > p.MaxBytes {
		return errTooLarge(p.MaxBytes)
	}

	return nil
}
