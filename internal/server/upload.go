// upload.go - The upload request pipeline.
//
// Stage order per request: rate limit and authorization run as
// middleware ahead of this handler (reject cheaply first), then
// validation, then the streaming write with inline hashing, then the
// response. Every failure short-circuits into the taxonomy in
// errors.go, and a failure after bytes hit the disk removes them.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"
)

// multipartSlack covers boundaries, part headers, and small form
// fields on top of the file-byte ceiling enforced while streaming.
const multipartSlack = 1 << 20

// uploadResp is the JSON body of a successful upload.
type uploadResp struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Hash         string `json:"hash"`
	UploadPath   string `json:"uploadPath"`
}

// uploadHandler handles POST /upload: a multipart body with exactly
// one file field, streamed to disk under a collision-free stored name.
func (s *Server) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policy := s.cfg.Policy

		fail := func(err error) {
			var ue *uploadError
			if errors.As(err, &ue) {
				uploadsTotal.WithLabelValues(string(ue.reason)).Inc()
			} else {
				uploadsTotal.WithLabelValues(string(reasonInternal)).Inc()
			}
			writeError(w, r, err)
		}

		// A stalled or oversized-duration upload behaves like any
		// other I/O failure: the read errors out and the partial file
		// is cleaned up.
		if s.cfg.UploadTimeout > 0 {
			rc := http.NewResponseController(w)
			_ = rc.SetReadDeadline(time.Now().Add(s.cfg.UploadTimeout))
		}

		if policy.MaxBytes > 0 {
			// Reject a declared oversize before reading any bytes. The
			// declared length may be absent or forged, so the ceiling
			// is enforced again while streaming.
			if r.ContentLength > policy.MaxBytes {
				fail(errTooLarge(policy.MaxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, policy.MaxBytes+multipartSlack)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			fail(errBadRequest("expected a multipart form body"))
			return
		}

		var stored *StoredFile
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				if stored != nil {
					_ = s.store.Remove(stored.Name)
				}
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					fail(errTooLarge(policy.MaxBytes))
					return
				}
				fail(errBadRequest("malformed multipart body"))
				return
			}

			if part.FileName() == "" {
				// Plain form field; not part of the upload contract.
				_, _ = io.Copy(io.Discard, io.LimitReader(part, 64<<10))
				_ = part.Close()
				continue
			}

			if stored != nil {
				field := part.FormName()
				_ = part.Close()
				_ = s.store.Remove(stored.Name)
				fail(errUnexpectedField(field))
				return
			}

			if err := policy.validateUpload(part.FileName(), part.Header.Get("Content-Type"), r.ContentLength); err != nil {
				_ = part.Close()
				fail(err)
				return
			}

			stored, err = s.store.Save(part, part.FileName(), policy.MaxBytes)
			_ = part.Close()
			if err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					fail(errTooLarge(policy.MaxBytes))
					return
				}
				fail(err)
				return
			}
			// Keep reading parts: a second file field in the same body
			// must be rejected, not silently ignored.
		}

		if stored == nil {
			fail(errBadRequest("no file was uploaded"))
			return
		}

		uploadsTotal.WithLabelValues("success").Inc()
		uploadBytesTotal.Add(float64(stored.Size))
		filesStored.Set(float64(s.store.Count()))

		Info("upload_complete", map[string]any{
			"rid":      RequestIDFromContext(r.Context()),
			"filename": stored.Name,
			"original": stored.OriginalName,
			"size":     stored.Size,
			"hash":     stored.Digest,
		})

		writeJSON(w, http.StatusOK, uploadResp{
			Success:      true,
			Message:      "file uploaded successfully",
			Filename:     stored.Name,
			OriginalName: stored.OriginalName,
			Size:         stored.Size,
			Hash:         stored.Digest,
			UploadPath:   "/download/" + stored.Name,
		})
	}
}
