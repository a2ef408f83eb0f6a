package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/queue"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token, url string) error
	SendVerification(ctx context.Context, to, code string) error
}

type EmailWorker struct {
	mailer Mailer
}

func NewEmailWorker(m Mailer) *EmailWorker {
	return &EmailWorker{mailer: m}
}

func (w *EmailWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypePasswordResetEmail, asynq.HandlerFunc(w.PasswordReset))
	r.Register(queue.TypeVerificationEmail, asynq.HandlerFunc(w.Verification))
}

func (w *EmailWorker) PasswordReset(ctx context.Context, t *asynq.Task) error {
	var p queue.PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	return retryable(w.mailer.SendPasswordReset(ctx, p.Email, p.Token, p.URL), t.Type())
}

func (w *EmailWorker) Verification(ctx context.Context, t *asynq.Task) error {
	var p queue.VerificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	return retryable(w.mailer.SendVerification(ctx, p.Email, p.Code), t.Type())
}

// retryable lets asynq retry delivery failures only; a bad address or a
// missing API key will not fix itself.
func retryable(err error, taskType string) error {
	if err == nil {
		return nil
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConfig:
		slog.Error("email task dropped", "type", taskType, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	slog.Warn("email task failed", "type", taskType, "error", err)
	return err
}

