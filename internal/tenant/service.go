package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const slugAttempts = 5

// Identity is what the authentication provider vouches for.
type Identity struct {
	Subject uuid.UUID
	Email   string
	Name    string
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// EnsureUser returns the user for id, creating it together with a
// "Personal" organization on first sign-in.
func (s *Service) EnsureUser(ctx context.Context, id Identity) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u = &models.User{
		ID:                 id.Subject,
		Email:              id.Email,
		EmailNotifications: true,
	}
	if name := strings.TrimSpace(id.Name); name != "" {
		u.Name = &name
	}

	base := slugBase(id)
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := base
		if attempt > 0 {
			slug = base + "-" + validate.SlugSuffix()
		}
		org := &models.Organization{Name: "Personal", Slug: slug, Plan: models.PlanFree}
		err = s.store.CreateUserWithOrganization(ctx, u, org)
		if err == nil {
			slog.Info("provisioned user", "user_id", u.ID, "org_id", org.ID, "slug", org.Slug)
			return u, nil
		}
		// A concurrent first request may have created the user already.
		if errors.Is(err, store.ErrDuplicate) || errors.Is(err, store.ErrEmailTaken) {
			if existing, getErr := s.store.GetUser(ctx, id.Subject); getErr == nil {
				return existing, nil
			}
		}
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, store.Translate(err, "user")
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("provision user: %w", err)
		}
	}
	return nil, fmt.Errorf("provision user: no free organization slug for %q", base)
}

func slugBase(id Identity) string {
	src := id.Name
	if src == "" {
		src, _, _ = strings.Cut(id.Email, "@")
	}
	return validate.DeriveSlug(src, "user")
}
