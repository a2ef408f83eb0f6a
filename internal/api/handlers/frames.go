package handlers

import (
	"net/http"

	"github.com/storygraph/storygraph/internal/frame"
	"github.com/storygraph/storygraph/internal/tenant"
)

type FrameHandler struct {
	svc *frame.Service
}

func NewFrameHandler(svc *frame.Service) *FrameHandler {
	return &FrameHandler{svc: svc}
}

func (h *FrameHandler) List(w http.ResponseWriter, r *http.Request) {
	sceneID, ok := queryID(r, "sceneId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	fs, err := h.svc.List(r.Context(), tenant.CallerID(r.Context()), sceneID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(fs))
}

func (h *FrameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "frameId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	f, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, f)
}

func (h *FrameHandler) Create(w http.ResponseWriter, r *http.Request) {
	sceneID, err := idParam(r, "sceneId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in frame.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), sceneID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, f)
}

func (h *FrameHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "frameId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in frame.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, f)
}

func (h *FrameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "frameId")
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

func (h *FrameHandler) Generations(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "frameId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	gs, err := h.svc.Generations(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(gs))
}
