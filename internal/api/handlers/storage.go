package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/storage"
	"github.com/storygraph/storygraph/internal/tenant"
)

type StorageHandler struct {
	svc *storage.Service
}

func NewStorageHandler(svc *storage.Service) *StorageHandler {
	return &StorageHandler{svc: svc}
}

func (h *StorageHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.GenerateUploadURL(r.Context(), tenant.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, target)
}

type urlResponse struct {
	URL *string `json:"url"`
}

type urlRequest struct {
	StorageID string `json:"storage_id"`
}

// GetURL resolves ?id= to a fetchable URL, or {"url": null}.
func (h *StorageHandler) GetURL(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	writeJSON(w, r, urlResponse{URL: h.svc.GetURL(r.Context(), tenant.CallerID(r.Context()), id)})
}

// ResolveURL is GetURL for clients that resolve right after an upload.
func (h *StorageHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, urlResponse{URL: h.svc.GetURL(r.Context(), tenant.CallerID(r.Context()), req.StorageID)})
}

type urlsRequest struct {
	StorageIDs []string `json:"storage_ids"`
}

type urlsResponse struct {
	URLs []string `json:"urls"`
}

func (h *StorageHandler) GetURLs(w http.ResponseWriter, r *http.Request) {
	var req urlsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	urls, err := h.svc.GetURLs(r.Context(), tenant.CallerID(r.Context()), req.StorageIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, urlsResponse{URLs: urls})
}

// DeleteFile accepts the handle raw or path-escaped.
func (h *StorageHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || id == "" {
		writeError(w, r, apperr.Validation("invalid storage id"))
		return
	}
	if err := h.svc.DeleteFile(r.Context(), tenant.CallerID(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w, r)
}
