package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
)

// EmailDispatcher delivers transactional email, either inline or through
// the task queue.
type EmailDispatcher interface {
	SendPasswordReset(ctx context.Context, to, token, url string) error
	SendVerification(ctx context.Context, to, code string) error
}

type EmailHandler struct {
	dispatcher EmailDispatcher
}

func NewEmailHandler(d EmailDispatcher) *EmailHandler {
	return &EmailHandler{dispatcher: d}
}

type passwordResetRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

type verificationRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *EmailHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.dispatcher.SendPasswordReset(r.Context(), req.Email, req.Token, req.URL); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	writeJSON(w, r, map[string]string{"status": "queued"})
}

func (h *EmailHandler) Verification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.dispatcher.SendVerification(r.Context(), req.Email, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	writeJSON(w, r, map[string]string{"status": "queued"})
}
