package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"atelier/internal/upload"
	"atelier/pkg/model"
)

// handleCreateDocument handles POST /admin/v1/collections/{collection}/documents
func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeBodyError(w, err)
		return
	}
	stored, err := h.content.Create(r.Context(), r.PathValue("collection"), doc)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handleUpdateDocument handles PATCH /admin/v1/collections/{collection}/documents/{id}
func (h *Handler) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var fields model.Document
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeBodyError(w, err)
		return
	}
	stored, err := h.content.Update(r.Context(), r.PathValue("collection"), r.PathValue("id"), fields)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleDeleteDocument handles DELETE /admin/v1/collections/{collection}/documents/{id}
func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.content.Delete(r.Context(), r.PathValue("collection"), r.PathValue("id")); err != nil {
		writeContentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload handles POST /admin/v1/uploads. The file travels in the
// multipart field "file".
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.uploadMax); err != nil {
		writeBodyError(w, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Multipart field 'file' is required")
		return
	}
	defer file.Close()
	if hdr.Size > h.uploadMax {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "File too large")
		return
	}

	url, err := h.content.Upload(r.Context(), upload.File{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
}
