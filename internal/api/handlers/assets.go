package handlers

import (
	"net/http"

	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/asset"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/tenant"
)

type AssetHandler struct {
	svc *asset.Service
}

func NewAssetHandler(svc *asset.Service) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// List returns the project's assets, filtered by ?type= when given.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryID(r, "projectId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	var typ *models.AssetType
	if v := r.URL.Query().Get("type"); v != "" {
		t := models.AssetType(v)
		if !t.Valid() {
			writeError(w, r, apperr.Validation("unknown asset type"))
			return
		}
		typ = &t
	}
	as, err := h.svc.List(r.Context(), tenant.CallerID(r.Context()), projectID, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(as))
}

func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "assetId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	a, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, a)
}

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in asset.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), projectID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, a)
}

func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "assetId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in asset.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, a)
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "assetId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Remove(r.Context(), tenant.CallerID(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w, r)
}
