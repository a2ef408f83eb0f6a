package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const RecentLimit = 10

// URLResolver resolves a storage handle or URL; nil means unresolvable.
type URLResolver interface {
	URL(ctx context.Context, value string) *string
}

type Service struct {
	store    store.Store
	access   *access.Resolver
	urls     URLResolver
	activity *activity.Service
}

func NewService(st store.Store, ac *access.Resolver, urls URLResolver, act *activity.Service) *Service {
	return &Service{store: st, access: ac, urls: urls, activity: act}
}

type CreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Thumbnail   *string `json:"thumbnail,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Thumbnail   *string `json:"thumbnail,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

func (s *Service) List(ctx context.Context, caller, orgID uuid.UUID) ([]models.Project, error) {
	d, err := s.access.Check(ctx, caller, access.Organization(orgID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// GetRecent lists recently updated projects in orgID, or across every
// organization the caller belongs to when orgID is nil.
func (s *Service) GetRecent(ctx context.Context, caller uuid.UUID, orgID *uuid.UUID) ([]models.Project, error) {
	if caller == uuid.Nil {
		return nil, nil
	}

	var orgIDs []uuid.UUID
	if orgID != nil {
		d, err := s.access.Check(ctx, caller, access.Organization(*orgID), auth.PermRead)
		if err != nil || !d.Allowed {
			return nil, err
		}
		orgIDs = []uuid.UUID{*orgID}
	} else {
		ms, err := s.store.ListMemberships(ctx, caller)
		if err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		for _, m := range ms {
			orgIDs = append(orgIDs, m.Organization.ID)
		}
	}
	if len(orgIDs) == 0 {
		return nil, nil
	}

	projects, err := s.store.ListRecentProjects(ctx, orgIDs, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent projects: %w", err)
	}
	return projects, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.Project, error) {
	d, err := s.access.Check(ctx, caller, access.Project(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, caller, orgID uuid.UUID, in CreateInput) (*models.Project, error) {
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
	thumb, err := s.checkThumbnail(ctx, in.Thumbnail)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		OrgID:       orgID,
		Name:        name,
		Description: desc,
		Thumbnail:   thumb,
		CreatedBy:   &caller,
	}
	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, store.Translate(err, "organization")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "project.created",
		ResourceType: access.KindProject, ResourceID: p.ID,
		Details: map[string]any{"name": p.Name},
	})
	return p, nil
}

func (s *Service) Update(ctx context.Context, caller, id uuid.UUID, in UpdateInput) (*models.Project, error) {
	d, err := s.access.Require(ctx, caller, access.Project(id), auth.PermWrite)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, store.Translate(err, "project")
	}

	if in.Name != nil {
		if p.Name, err = validate.Name(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if p.Description, err = validate.Description(in.Description); err != nil {
			return nil, err
		}
	}
	if in.Thumbnail != nil {
		if p.Thumbnail, err = s.checkThumbnail(ctx, in.Thumbnail); err != nil {
			return nil, err
		}
	}
	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, store.Translate(err, "project")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "project.updated",
		ResourceType: access.KindProject, ResourceID: p.ID,
	})
	return p, nil
}

// Remove deletes the project with all of its scenes, frames and assets.
// Only organization admins may do this.
func (s *Service) Remove(ctx context.Context, caller, id uuid.UUID) error {
	d, err := s.access.Require(ctx, caller, access.Project(id), auth.PermAdmin)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return store.Translate(err, "project")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "project.deleted",
		ResourceType: access.KindProject, ResourceID: id,
	})
	return nil
}

// checkThumbnail refuses a storage handle that does not resolve, so an
// entity never points at a missing file. An empty value clears the field.
func (s *Service) checkThumbnail(ctx context.Context, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}
	if s.urls.URL(ctx, t) == nil {
		return nil, apperr.Validation("thumbnail does not resolve to a stored file")
	}
	return &t, nil
}
