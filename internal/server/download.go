// download.go - Streaming stored files back to clients.
package server

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// downloadHandler handles GET /download/{filename}. The response
// restores the original filename in the Content-Disposition header and
// supports range requests via http.ServeContent.
func (s *Server) downloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "filename")

		// Stored names never contain separators; anything else is not
		// a file we created.
		if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, "\x00") || name[0] == '.' {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"message": "file not found",
			})
			return
		}

		f, info, err := s.store.Open(name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"message": "file not found",
			})
			return
		}
		defer f.Close()

		original := originalNameFromStored(name)

		contentType := mime.TypeByExtension(fileExtension(original))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+original+`"`)

		http.ServeContent(w, r, original, info.ModTime(), f)

		Info("download_complete", map[string]any{
			"rid":      RequestIDFromContext(r.Context()),
			"filename": name,
			"original": original,
			"size":     info.Size(),
		})
	}
}
