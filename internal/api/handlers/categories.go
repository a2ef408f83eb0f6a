package handlers

import (
	"net/http"

	"github.com/storygraph/storygraph/internal/category"
	"github.com/storygraph/storygraph/internal/tenant"
)

type CategoryHandler struct {
	svc *category.Service
}

func NewCategoryHandler(svc *category.Service) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryID(r, "orgId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	cs, err := h.svc.ListAll(r.Context(), tenant.CallerID(r.Context()), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(cs))
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "categoryId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	c, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, c)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := idParam(r, "orgId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in category.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), orgID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "categoryId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in category.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, c)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "categoryId")
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
