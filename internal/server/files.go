// files.go - Listing of stored files.
package server

import (
	"fmt"
	"net/http"
	"time"
)

// fileInfo is one entry of the GET /files listing. Hash is present
// only for files whose digest was computed during this process run.
type fileInfo struct {
	Filename      string `json:"filename"`
	OriginalName  string `json:"originalName"`
	Size          int64  `json:"size"`
	UploadTime    string `json:"uploadTime"`
	SizeFormatted string `json:"sizeFormatted"`
	Hash          string `json:"hash,omitempty"`
}

// formatSize renders a byte count the way the UI shows it.
func formatSize(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
}

// filesHandler handles GET /files: every stored file, newest first.
func (s *Server) filesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := s.store.List()
		if err != nil {
			writeError(w, r, errIOFailure(err))
			return
		}

		files := make([]fileInfo, 0, len(infos))
		for _, info := range infos {
			files = append(files, fileInfo{
				Filename:      info.Name(),
				OriginalName:  originalNameFromStored(info.Name()),
				Size:          info.Size(),
				UploadTime:    info.ModTime().UTC().Format(time.RFC3339),
				SizeFormatted: formatSize(info.Size()),
				Hash:          s.store.Digest(info.Name()),
			})
		}

		filesStored.Set(float64(len(files)))

		writeJSON(w, http.StatusOK, map[string]any{
			"files": files,
		})
	}
}
