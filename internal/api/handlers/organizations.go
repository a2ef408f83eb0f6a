package handlers

import (
	"net/http"
	"strconv"

	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/organization"
	"github.com/storygraph/storygraph/internal/tenant"
)

type OrganizationHandler struct {
	svc      *organization.Service
	activity *activity.Service
}

func NewOrganizationHandler(svc *organization.Service, act *activity.Service) *OrganizationHandler {
	return &OrganizationHandler{svc: svc, activity: act}
}

func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.List(r.Context(), tenant.CallerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(ms))
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "orgId")
	if !ok {
		writeJSON(w, r, nil)
		return
	}
	org, err := h.svc.Get(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, org)
}

func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in organization.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	org, err := h.svc.Create(r.Context(), tenant.CallerID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, org)
}

func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "orgId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	ms, err := h.svc.Members(r.Context(), tenant.CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(ms))
}

func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "orgId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in organization.AddMemberInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.AddMember(r.Context(), tenant.CallerID(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, r, m)
}

type updateMemberRequest struct {
	Role models.Role `json:"role"`
}

func (h *OrganizationHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := idParam(r, "orgId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.UpdateMemberRole(r.Context(), tenant.CallerID(r.Context()), orgID, userID, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w, r)
}

func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := idParam(r, "orgId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RemoveMember(r.Context(), tenant.CallerID(r.Context()), orgID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w, r)
}

// Activity lists the organization's recent changes, newest first.
func (h *OrganizationHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "orgId")
	if !ok {
		writeJSON(w, r, emptyList)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.activity.List(r.Context(), tenant.CallerID(r.Context()), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list(logs))
}
