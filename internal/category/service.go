package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const maxIconLength = 64

type Service struct {
	store    store.Store
	access   *access.Resolver
	activity *activity.Service
}

func NewService(st store.Store, ac *access.Resolver, act *activity.Service) *Service {
	return &Service{store: st, access: ac, activity: act}
}

type CreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

// ListAll returns every category in the organization. Categories are shared
// by all of the organization's projects.
func (s *Service) ListAll(ctx context.Context, caller, orgID uuid.UUID) ([]models.AssetCategory, error) {
	d, err := s.access.Check(ctx, caller, access.Organization(orgID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.AssetCategory, error) {
	d, err := s.access.Check(ctx, caller, access.Category(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, caller, orgID uuid.UUID, in CreateInput) (*models.AssetCategory, error) {
	d, err := s.access.Require(ctx, caller, access.Organization(orgID), auth.PermWrite)
	if err != nil {
		return nil, err
	}

	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, err
	}
	desc, err := validate.Description(in.Description)
	if err != nil {
		return nil, err
	}
	icon, err := checkIcon(in.Icon)
	if err != nil {
		return nil, err
	}

	c := &models.AssetCategory{OrgID: orgID, Name: name, Description: desc, Icon: icon}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, store.Translate(err, "organization")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "category.created",
		ResourceType: access.KindCategory, ResourceID: c.ID,
		Details: map[string]any{"name": c.Name},
	})
	return c, nil
}

func (s *Service) Update(ctx context.Context, caller, id uuid.UUID, in UpdateInput) (*models.AssetCategory, error) {
	d, err := s.access.Require(ctx, caller, access.Category(id), auth.PermWrite)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, store.Translate(err, "category")
	}

	if in.Name != nil {
		if c.Name, err = validate.Name(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if c.Description, err = validate.Description(in.Description); err != nil {
			return nil, err
		}
	}
	if in.Icon != nil {
		if c.Icon, err = checkIcon(in.Icon); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, store.Translate(err, "category")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "category.updated",
		ResourceType: access.KindCategory, ResourceID: c.ID,
	})
	return c, nil
}

// Remove deletes an unused category. Admin only; a category that any asset
// still references is left untouched and CONFLICT is returned.
func (s *Service) Remove(ctx context.Context, caller, id uuid.UUID) error {
	d, err := s.access.Require(ctx, caller, access.Category(id), auth.PermAdmin)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return apperr.Conflict("category is used by one or more assets")
		}
		return store.Translate(err, "category")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "category.deleted",
		ResourceType: access.KindCategory, ResourceID: id,
	})
	return nil
}

func checkIcon(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	icon := strings.TrimSpace(*v)
	if icon == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(icon) > maxIconLength {
		return nil, apperr.Validation(fmt.Sprintf("icon must be at most %d characters", maxIconLength))
	}
	return &icon, nil
}
