package asset

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
	"github.com/storygraph/storygraph/internal/storage"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const MaxReferenceImages = 10

type URLResolver interface {
	URL(ctx context.Context, value string) *string
	URLs(ctx context.Context, values []string) []string
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
	Type            models.AssetType `json:"type"`
	Name            string           `json:"name"`
	Description     *string          `json:"description,omitempty"`
	CategoryID      *uuid.UUID       `json:"category_id,omitempty"`
	ReferenceImages []string         `json:"reference_images,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

type UpdateInput struct {
	Type        *models.AssetType `json:"type,omitempty"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	// CategoryID set to uuid.Nil clears the category.
	CategoryID      *uuid.UUID      `json:"category_id,omitempty"`
	ReferenceImages *[]string       `json:"reference_images,omitempty"`
	Metadata        *map[string]any `json:"metadata,omitempty"`
}

// List returns the project's assets, optionally only those of one type.
func (s *Service) List(ctx context.Context, caller, projectID uuid.UUID, typ *models.AssetType) ([]models.Asset, error) {
	d, err := s.access.Check(ctx, caller, access.Project(projectID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	if typ != nil && !typ.Valid() {
		return nil, nil
	}
	assets, err := s.store.ListAssets(ctx, projectID, typ)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	for i := range assets {
		s.fillURLs(ctx, &assets[i])
	}
	return assets, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.Asset, error) {
	d, err := s.access.Check(ctx, caller, access.Asset(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	a, err := s.store.GetAsset(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	s.fillURLs(ctx, a)
	return a, nil
}

func (s *Service) Create(ctx context.Context, caller, projectID uuid.UUID, in CreateInput) (*models.Asset, error) {
	d, err := s.access.Require(ctx, caller, access.Project(projectID), auth.PermWrite)
	if err != nil {
		return nil, err
	}

	if !in.Type.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid asset type %q", in.Type))
	}
	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, err
	}
	desc, err := validate.Description(in.Description)
	if err != nil {
		return nil, err
	}
	if err := validate.Metadata(in.Metadata); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, d.OrgID, in.CategoryID); err != nil {
		return nil, err
	}
	refs, err := s.checkReferenceImages(ctx, in.ReferenceImages)
	if err != nil {
		return nil, err
	}

	a := &models.Asset{
		ProjectID:       projectID,
		CategoryID:      in.CategoryID,
		Type:            in.Type,
		Name:            name,
		Description:     desc,
		ReferenceImages: refs,
		Metadata:        in.Metadata,
		CreatedBy:       &caller,
	}
	if err := s.store.CreateAsset(ctx, a); err != nil {
		return nil, store.Translate(err, "project")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "asset.created",
		ResourceType: access.KindAsset, ResourceID: a.ID,
		Details: map[string]any{"name": a.Name, "type": a.Type},
	})
	s.fillURLs(ctx, a)
	return a, nil
}

func (s *Service) Update(ctx context.Context, caller, id uuid.UUID, in UpdateInput) (*models.Asset, error) {
	d, err := s.access.Require(ctx, caller, access.Asset(id), auth.PermWrite)
	if err != nil {
		return nil, err
	}
	a, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, store.Translate(err, "asset")
	}

	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("invalid asset type %q", *in.Type))
		}
		a.Type = *in.Type
	}
	if in.Name != nil {
		if a.Name, err = validate.Name(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if a.Description, err = validate.Description(in.Description); err != nil {
			return nil, err
		}
	}
	if in.CategoryID != nil {
		if *in.CategoryID == uuid.Nil {
			a.CategoryID = nil
		} else {
			if err := s.checkCategory(ctx, d.OrgID, in.CategoryID); err != nil {
				return nil, err
			}
			a.CategoryID = in.CategoryID
		}
	}
	if in.ReferenceImages != nil {
		if a.ReferenceImages, err = s.checkReferenceImages(ctx, *in.ReferenceImages); err != nil {
			return nil, err
		}
	}
	if in.Metadata != nil {
		if err := validate.Metadata(*in.Metadata); err != nil {
			return nil, err
		}
		a.Metadata = *in.Metadata
	}

	if err := s.store.UpdateAsset(ctx, a); err != nil {
		return nil, store.Translate(err, "asset")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "asset.updated",
		ResourceType: access.KindAsset, ResourceID: a.ID,
	})
	s.fillURLs(ctx, a)
	return a, nil
}

func (s *Service) Remove(ctx context.Context, caller, id uuid.UUID) error {
	d, err := s.access.Require(ctx, caller, access.Asset(id), auth.PermWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAsset(ctx, id); err != nil {
		return store.Translate(err, "asset")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "asset.deleted",
		ResourceType: access.KindAsset, ResourceID: id,
	})
	return nil
}

// checkCategory requires the category to live in the asset's organization.
func (s *Service) checkCategory(ctx context.Context, orgID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	c, err := s.store.GetCategory(ctx, *id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && c.OrgID != orgID) {
		return apperr.Validation("category does not belong to this organization")
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

func (s *Service) checkReferenceImages(ctx context.Context, refs []string) ([]string, error) {
	if len(refs) > MaxReferenceImages {
		return nil, apperr.Validation(fmt.Sprintf("at most %d reference images", MaxReferenceImages))
	}
	var out []string
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if s.urls.URL(ctx, r) == nil {
			return nil, apperr.Validation("reference image does not resolve to a stored file")
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) fillURLs(ctx context.Context, a *models.Asset) {
	a.ReferenceURLs = s.urls.URLs(ctx, a.ReferenceImages)
	var first *string
	if len(a.ReferenceURLs) > 0 {
		first = &a.ReferenceURLs[0]
	}
	a.PreviewURL = storage.URLOrPlaceholder(first, string(a.Type), a.Name)
}
