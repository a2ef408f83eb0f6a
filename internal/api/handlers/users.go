package handlers

import (
	"net/http"

	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/tenant"
	"github.com/storygraph/storygraph/internal/user"
)

type UserHandler struct {
	svc *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me answers null for an anonymous request.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Viewer(r.Context(), tenant.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.UserProfile
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), tenant.CallerID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, u)
}

func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var in models.UserPreferences
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.UpdatePreferences(r.Context(), tenant.CallerID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, u)
}
