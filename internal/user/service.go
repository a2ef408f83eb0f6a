package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const (
	maxBioLength  = 500
	maxRoleLength = 50
)

type URLResolver interface {
	URL(ctx context.Context, value string) *string
}

type Service struct {
	store store.Store
	urls  URLResolver
}

func NewService(st store.Store, urls URLResolver) *Service {
	return &Service{store: st, urls: urls}
}

// Viewer returns the caller's own record with the image resolved to a
// fetchable URL. It is nil without a session.
func (s *Service) Viewer(ctx context.Context, caller uuid.UUID) (*models.User, error) {
	if caller == uuid.Nil {
		return nil, nil
	}
	u, err := s.store.GetUser(ctx, caller)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	s.resolveImage(ctx, u)
	return u, nil
}

// Update applies the non-nil profile fields. An empty string clears an
// optional field.
func (s *Service) Update(ctx context.Context, caller uuid.UUID, in models.UserProfile) (*models.User, error) {
	u, err := s.load(ctx, caller)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name, err := validate.Name(*in.Name)
		if err != nil {
			return nil, err
		}
		u.Name = &name
	}
	if in.Image != nil {
		img := strings.TrimSpace(*in.Image)
		switch {
		case img == "":
			u.Image = nil
		case s.urls.URL(ctx, img) == nil:
			return nil, apperr.Validation("image does not resolve to a stored file")
		default:
			u.Image = &img
		}
	}
	if in.Bio != nil {
		if u.Bio, err = optionalText("bio", *in.Bio, maxBioLength); err != nil {
			return nil, err
		}
	}
	if in.Role != nil {
		if u.Role, err = optionalText("role", *in.Role, maxRoleLength); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, store.Translate(err, "user")
	}
	s.resolveImage(ctx, u)
	return u, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, caller uuid.UUID, in models.UserPreferences) (*models.User, error) {
	u, err := s.load(ctx, caller)
	if err != nil {
		return nil, err
	}
	if in.EmailNotifications != nil {
		u.EmailNotifications = *in.EmailNotifications
	}
	if in.MarketingEmails != nil {
		u.MarketingEmails = *in.MarketingEmails
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, store.Translate(err, "user")
	}
	s.resolveImage(ctx, u)
	return u, nil
}

// resolveImage swaps the stored image handle for a fetchable URL. The
// stored record keeps the handle.
func (s *Service) resolveImage(ctx context.Context, u *models.User) {
	if u.Image != nil {
		u.Image = s.urls.URL(ctx, *u.Image)
	}
}

func (s *Service) load(ctx context.Context, caller uuid.UUID) (*models.User, error) {
	if caller == uuid.Nil {
		return nil, apperr.Unauthenticated()
	}
	u, err := s.store.GetUser(ctx, caller)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthenticated()
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func optionalText(field, v string, max int) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > max {
		return nil, apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return &v, nil
}
