package handlers

import (
	"net/http"

	"github.com/storygraph/storygraph/internal/scene"
	"github.com/storygraph/storygraph/internal/tenant"
)

type SceneHandler struct {
	svc *scene.Service
}

func NewSceneHandler(svc *scene.Service) *SceneHandler {
	return &SceneHandler{svc: svc}
}

func (h *SceneHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryID(r, "projectId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	ss, err := h.svc.List(r.Context(), tenant.CallerID(r.Context()), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(ss))
}

func (h *SceneHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "sceneId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	s, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, s)
}

func (h *SceneHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := idParam(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in scene.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), projectID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, s)
}

func (h *SceneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "sceneId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in scene.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, s)
}

func (h *SceneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "sceneId")
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
