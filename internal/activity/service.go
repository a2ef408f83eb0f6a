package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	store  store.Store
	access *access.Resolver
}

func NewService(st store.Store, ac *access.Resolver) *Service {
	return &Service{store: st, access: ac}
}

type Entry struct {
	OrgID        uuid.UUID
	UserID       uuid.UUID
	Action       string
	ResourceType access.Kind
	ResourceID   uuid.UUID
	Details      map[string]any
}

func (s *Service) Log(ctx context.Context, e Entry) error {
	l := models.ActivityLog{
		OrgID:        e.OrgID,
		Action:       e.Action,
		ResourceType: string(e.ResourceType),
	}
	if e.UserID != uuid.Nil {
		l.UserID = &e.UserID
	}
	if e.ResourceID != uuid.Nil {
		l.ResourceID = &e.ResourceID
	}
	if len(e.Details) > 0 {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		l.Details = details
	}
	if err := s.store.AppendActivity(ctx, &l); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// Record is Log for callers that have already committed their mutation; a
// failure is logged and otherwise ignored.
func (s *Service) Record(ctx context.Context, e Entry) {
	if err := s.Log(ctx, e); err != nil {
		slog.Warn("activity log dropped", "error", err, "action", e.Action, "org_id", e.OrgID)
	}
}

// List returns the newest entries for an organization the caller can read.
func (s *Service) List(ctx context.Context, caller, orgID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	d, err := s.access.Check(ctx, caller, access.Organization(orgID), auth.PermRead)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	logs, err := s.store.ListActivity(ctx, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return logs, nil
}
