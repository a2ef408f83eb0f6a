package frame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

const MaxAssetRefs = 20

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
	Prompt   string      `json:"prompt"`
	AssetIDs []uuid.UUID `json:"asset_ids,omitempty"`
}

type UpdateInput struct {
	Prompt *string             `json:"prompt,omitempty"`
	Status *models.FrameStatus `json:"status,omitempty"`
	// ImageStorageID attaches a generated or uploaded image; "" detaches it.
	ImageStorageID *string      `json:"image_storage_id,omitempty"`
	AssetIDs       *[]uuid.UUID `json:"asset_ids,omitempty"`
}

// List returns the scene's frames in order with image URLs resolved.
func (s *Service) List(ctx context.Context, caller, sceneID uuid.UUID) ([]models.Frame, error) {
	d, err := s.access.Check(ctx, caller, access.Scene(sceneID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	frames, err := s.store.ListFrames(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	for i := range frames {
		s.resolveImage(ctx, &frames[i])
	}
	return frames, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.Frame, error) {
	d, err := s.access.Check(ctx, caller, access.Frame(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	f, err := s.store.GetFrame(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	s.resolveImage(ctx, f)
	return f, nil
}

func (s *Service) Create(ctx context.Context, caller, sceneID uuid.UUID, in CreateInput) (*models.Frame, error) {
	d, err := s.access.Require(ctx, caller, access.Scene(sceneID), auth.PermWrite)
	if err != nil {
		return nil, err
	}

	prompt, err := validate.Prompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	sc, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, store.Translate(err, "scene")
	}
	assetIDs, err := s.checkAssetRefs(ctx, sc.ProjectID, in.AssetIDs)
	if err != nil {
		return nil, err
	}

	f := &models.Frame{
		SceneID:  sceneID,
		Prompt:   prompt,
		Status:   models.FrameStatusPending,
		AssetIDs: assetIDs,
	}
	if err := s.store.CreateFrame(ctx, f); err != nil {
		return nil, store.Translate(err, "scene")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "frame.created",
		ResourceType: access.KindFrame, ResourceID: f.ID,
		Details: map[string]any{"scene_id": sceneID, "order": f.Order},
	})
	return f, nil
}

// Update edits a frame. A change of status or image is also recorded as a
// generation so the frame keeps its history.
func (s *Service) Update(ctx context.Context, caller, id uuid.UUID, in UpdateInput) (*models.Frame, error) {
	d, err := s.access.Require(ctx, caller, access.Frame(id), auth.PermWrite)
	if err != nil {
		return nil, err
	}
	f, err := s.store.GetFrame(ctx, id)
	if err != nil {
		return nil, store.Translate(err, "frame")
	}
	prevStatus, prevImage := f.Status, deref(f.ImageStorageID)

	if in.Prompt != nil {
		if f.Prompt, err = validate.Prompt(*in.Prompt); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("invalid frame status %q", *in.Status))
		}
		f.Status = *in.Status
	}
	if in.ImageStorageID != nil {
		img := strings.TrimSpace(*in.ImageStorageID)
		switch {
		case img == "":
			f.ImageStorageID = nil
		case s.urls.URL(ctx, img) == nil:
			return nil, apperr.Validation("image does not resolve to a stored file")
		default:
			f.ImageStorageID = &img
		}
	}
	if in.AssetIDs != nil {
		sc, err := s.store.GetScene(ctx, f.SceneID)
		if err != nil {
			return nil, store.Translate(err, "scene")
		}
		if f.AssetIDs, err = s.checkAssetRefs(ctx, sc.ProjectID, *in.AssetIDs); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateFrame(ctx, f); err != nil {
		return nil, store.Translate(err, "frame")
	}

	if f.Status != prevStatus || deref(f.ImageStorageID) != prevImage {
		g := &models.Generation{
			FrameID:        f.ID,
			UserID:         &caller,
			Prompt:         f.Prompt,
			Status:         f.Status,
			ImageStorageID: f.ImageStorageID,
		}
		// The frame update has committed; history is best effort.
		if err := s.store.CreateGeneration(ctx, g); err != nil {
			slog.Warn("generation history dropped", "error", err, "frame_id", f.ID, "status", f.Status)
		}
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "frame.updated",
		ResourceType: access.KindFrame, ResourceID: f.ID,
	})
	s.resolveImage(ctx, f)
	return f, nil
}

func (s *Service) Remove(ctx context.Context, caller, id uuid.UUID) error {
	d, err := s.access.Require(ctx, caller, access.Frame(id), auth.PermWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFrame(ctx, id); err != nil {
		return store.Translate(err, "frame")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: d.OrgID, UserID: caller, Action: "frame.deleted",
		ResourceType: access.KindFrame, ResourceID: id,
	})
	return nil
}

// Generations returns the frame's generation history, newest first.
func (s *Service) Generations(ctx context.Context, caller, id uuid.UUID) ([]models.Generation, error) {
	d, err := s.access.Check(ctx, caller, access.Frame(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	gens, err := s.store.ListGenerations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return gens, nil
}

// checkAssetRefs dedupes refs and makes sure each one is an asset of the
// same project. Refs stay weak afterwards: deleting an asset leaves them.
func (s *Service) checkAssetRefs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxAssetRefs {
		return nil, apperr.Validation(fmt.Sprintf("a frame can reference at most %d assets", MaxAssetRefs))
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		a, err := s.store.GetAsset(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && a.ProjectID != projectID) {
			return nil, apperr.Validation(fmt.Sprintf("asset %s is not part of this project", id))
		}
		if err != nil {
			return nil, fmt.Errorf("get asset: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) resolveImage(ctx context.Context, f *models.Frame) {
	if f.ImageStorageID != nil {
		f.ImageURL = s.urls.URL(ctx, *f.ImageStorageID)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
