package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

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
}

type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// List returns the project's scenes in order.
func (s *Service) List(ctx context.Context, caller, projectID uuid.UUID) ([]models.Scene, error) {
	d, err := s.access.Check(ctx, caller, access.Project(projectID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	scenes, err := s.store.ListScenes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return scenes, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.Scene, error) {
	d, err := s.access.Check(ctx, caller, access.Scene(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	sc, err := s.store.GetScene(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return sc, nil
}

// Create appends a scene to the project; its order is one past the
// current highest.
func (s *Service) Create(ctx context.Context, caller, projectID uuid.UUID, in CreateInput) (*models.Scene, error) {
	d, err := s.access.Require(ctx, caller, access.Project(projectID), auth.PermWrite)
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

	sc := &models.Scene{ProjectID: projectID, Name: name, Description: desc}
	if err := s.store.CreateScene(ctx, sc); err != nil {
		return nil, store.Translate(err, "project")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "scene.created",
		ResourceType: access.KindScene, ResourceID: sc.ID,
		Details: map[string]any{"project_id": projectID, "order": sc.Order},
	})
	return sc, nil
}

func (s *Service) Update(ctx context.Context, caller, id uuid.UUID, in UpdateInput) (*models.Scene, error) {
	d, err := s.access.Require(ctx, caller, access.Scene(id), auth.PermWrite)
	if err != nil {
		return nil, err
	}
	sc, err := s.store.GetScene(ctx, id)
	if err != nil {
		return nil, store.Translate(err, "scene")
	}

	if in.Name != nil {
		if sc.Name, err = validate.Name(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if sc.Description, err = validate.Description(in.Description); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateScene(ctx, sc); err != nil {
		return nil, store.Translate(err, "scene")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "scene.updated",
		ResourceType: access.KindScene, ResourceID: sc.ID,
	})
	return sc, nil
}

// Remove deletes the scene and every frame in it.
func (s *Service) Remove(ctx context.Context, caller, id uuid.UUID) error {
	d, err := s.access.Require(ctx, caller, access.Scene(id), auth.PermWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteScene(ctx, id); err != nil {
		return store.Translate(err, "scene")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "scene.deleted",
		ResourceType: access.KindScene, ResourceID: id,
	})
	return nil
}
