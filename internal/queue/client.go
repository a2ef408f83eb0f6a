package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/validate"
)

const emailQueue = "critical"

type Client struct {
	client *asynq.Client
	// emailReady is false without a RESEND_API_KEY; the worker could only
	// fail such tasks.
	emailReady bool
}

func NewClient(cfg config.RedisConfig, email config.EmailConfig) *Client {
	return &Client{
		client:     asynq.NewClient(RedisOpt(cfg)),
		emailReady: email.ResendAPIKey != "",
	}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SendPasswordReset queues a password reset email for the worker.
func (c *Client) SendPasswordReset(ctx context.Context, email, token, url string) error {
	email, err := c.checkEmail(email)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, TypePasswordResetEmail, PasswordResetPayload{Email: email, Token: token, URL: url},
		asynq.Queue(emailQueue), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) SendVerification(ctx context.Context, email, code string) error {
	email, err := c.checkEmail(email)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, TypeVerificationEmail, VerificationPayload{Email: email, Code: code},
		asynq.Queue(emailQueue), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) checkEmail(addr string) (string, error) {
	if !c.emailReady {
		return "", apperr.New(apperr.KindConfig, "RESEND_API_KEY is not set")
	}
	return validate.Email(addr)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
