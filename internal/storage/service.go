package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/ratelimit"
)

// MaxBatch caps how many handles one GetURLs call resolves.
const MaxBatch = 100

type UploadTarget struct {
	UploadURL string `json:"upload_url"`
	// StorageID is the handle the client sends back once the upload is done.
	StorageID string `json:"storage_id"`
}

// Service exposes the storage operations callers reach over the API. Every
// uploaded object lives under its uploader's user id.
type Service struct {
	backend  Backend
	resolver *Resolver
	limiter  ratelimit.Limiter
}

func NewService(backend Backend, resolver *Resolver, limiter ratelimit.Limiter) *Service {
	return &Service{backend: backend, resolver: resolver, limiter: limiter}
}

// GenerateUploadURL issues a short-lived upload URL for a fresh handle. It
// is rate limited per user.
func (s *Service) GenerateUploadURL(ctx context.Context, caller uuid.UUID) (*UploadTarget, error) {
	if caller == uuid.Nil {
		return nil, apperr.Unauthenticated()
	}
	res, err := s.limiter.Allow(ctx, "upload:"+caller.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "rate limiter unavailable", err)
	}
	if !res.Allowed {
		return nil, apperr.RateLimitedFor(
			fmt.Sprintf("too many uploads, retry in %s", res.RetryAfter.Round(time.Second)), res.RetryAfter)
	}
	if s.backend == nil {
		return nil, apperr.New(apperr.KindConfig, "file storage is not configured")
	}

	id := caller.String() + "/" + uuid.NewString()
	url, err := s.backend.SignedUploadURL(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not create upload url", err)
	}
	return &UploadTarget{UploadURL: url, StorageID: id}, nil
}

// GetURL resolves one handle; nil when it does not resolve.
func (s *Service) GetURL(ctx context.Context, caller uuid.UUID, id string) *string {
	if caller == uuid.Nil {
		return nil
	}
	return s.resolver.URL(ctx, id)
}

func (s *Service) GetURLs(ctx context.Context, caller uuid.UUID, ids []string) ([]string, error) {
	if caller == uuid.Nil {
		return nil, nil
	}
	if len(ids) > MaxBatch {
		return nil, apperr.Validation(fmt.Sprintf("at most %d ids per request", MaxBatch))
	}
	return s.resolver.URLs(ctx, ids), nil
}

// DeleteFile removes a file the caller uploaded.
func (s *Service) DeleteFile(ctx context.Context, caller uuid.UUID, id string) error {
	if caller == uuid.Nil {
		return apperr.Unauthenticated()
	}
	owner, _, ok := strings.Cut(id, "/")
	if !ok || owner != caller.String() || !ValidPath(id) {
		return apperr.Unauthorized("you can only delete files you uploaded")
	}
	if s.backend == nil {
		return apperr.New(apperr.KindConfig, "file storage is not configured")
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return apperr.NotFound("file not found")
		}
		return apperr.Wrap(apperr.KindInternal, "could not delete file", err)
	}
	s.resolver.Forget(ctx, id)
	slog.Info("storage file deleted", "storage_id", id, "user_id", caller)
	return nil
}
