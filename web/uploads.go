package web

import (
	"net/http"
)

type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// HandleCreateUpload hands out a presigned PUT URL for a new image. It
// answers 503 when no blob store is configured.
func (h *Handler) HandleCreateUpload(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "uploads are disabled"})

		return
	}

	id, url, err := h.blobs.UploadURL(r.Context())
	if err != nil {
		writeError(w, r, "failed to create upload url", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, uploadResponse{ID: id, URL: url})
}
