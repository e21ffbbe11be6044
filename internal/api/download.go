package api

import (
	"fmt"
	"net/http"
	"strings"
)

var headerUnsafe = strings.NewReplacer("\r", "_", "\n", "_", `"`, "_")

// safeFilename makes name safe to quote inside a Content-Disposition header.
func safeFilename(name string) string {
	return headerUnsafe.Replace(name)
}

// downloadFile serves a placeholder payload for an attachment. Unknown ids
// still download, as {id}.txt, instead of failing.
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, found, err := s.board.Attachment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var name, body string
	if found {
		name = a.OriginalName
		body = fmt.Sprintf("PLACEHOLDER FILE\n\nid: %s\nname: %s\nsize: %d\ntype: %s\n", a.ID, a.OriginalName, a.SizeBytes, a.MimeType)
	} else {
		name = id + ".txt"
		body = fmt.Sprintf("PLACEHOLDER FILE (fallback)\n\nid: %s\n", id)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, safeFilename(name)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
