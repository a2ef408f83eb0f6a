package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/project"
	"github.com/storygraph/storygraph/internal/tenant"
)

type ProjectHandler struct {
	svc *project.Service
}

func NewProjectHandler(svc *project.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := queryID(r, "orgId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	ps, err := h.svc.List(r.Context(), tenant.CallerID(r.Context()), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(ps))
}

// Recent lists recently updated projects, optionally within one
// organization (?orgId=).
func (h *ProjectHandler) Recent(w http.ResponseWriter, r *http.Request) {
	var orgID *uuid.UUID
	if v := r.URL.Query().Get("orgId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, apperr.Validation("orgId must be a uuid"))
			return
		}
		orgID = &id
	}
	ps, err := h.svc.GetRecent(r.Context(), tenant.CallerID(r.Context()), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(ps))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "projectId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	p, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, p)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := idParam(r, "orgId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in project.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), orgID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, p)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in project.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "projectId")
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
