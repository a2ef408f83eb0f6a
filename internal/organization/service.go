package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/validate"
)

const slugAttempts = 5

type Service struct {
	store    store.Store
	access   *access.Resolver
	activity *activity.Service
}

func NewService(st store.Store, ac *access.Resolver, act *activity.Service) *Service {
	return &Service{store: st, access: ac, activity: act}
}

type CreateInput struct {
	Name string `json:"name"`
	// Slug defaults to one derived from Name.
	Slug string `json:"slug,omitempty"`
}

type AddMemberInput struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// List returns every organization the caller belongs to, with the caller's
// role in each.
func (s *Service) List(ctx context.Context, caller uuid.UUID) ([]models.Membership, error) {
	if caller == uuid.Nil {
		return nil, nil
	}
	ms, err := s.store.ListMemberships(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return ms, nil
}

func (s *Service) Get(ctx context.Context, caller, id uuid.UUID) (*models.Organization, error) {
	d, err := s.access.Check(ctx, caller, access.Organization(id), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// Create makes a new organization owned by the caller, who becomes its
// admin.
func (s *Service) Create(ctx context.Context, caller uuid.UUID, in CreateInput) (*models.Organization, error) {
	if caller == uuid.Nil {
		return nil, apperr.Unauthenticated()
	}
	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, err
	}
	var slug string
	if in.Slug != "" {
		if slug, err = s.claimSlug(ctx, in.Slug); err != nil {
			return nil, err
		}
	} else if slug, err = s.deriveSlug(ctx, name); err != nil {
		return nil, err
	}

	org := &models.Organization{Name: name, Slug: slug, OwnerID: caller, Plan: models.PlanFree}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, store.Translate(err, "organization")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: org.ID, UserID: caller, Action: "organization.created",
		ResourceType: access.KindOrganization, ResourceID: org.ID,
	})
	return org, nil
}

// claimSlug validates a slug the caller chose. A taken slug is a conflict.
func (s *Service) claimSlug(ctx context.Context, raw string) (string, error) {
	slug, err := validate.Slug(raw)
	if err != nil {
		return "", err
	}
	taken, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return "", fmt.Errorf("check slug: %w", err)
	}
	if taken {
		return "", apperr.Conflict(fmt.Sprintf("slug %q is already taken", slug))
	}
	return slug, nil
}

// deriveSlug picks a free slug from the organization name, adding a random
// suffix when the plain form is taken.
func (s *Service) deriveSlug(ctx context.Context, name string) (string, error) {
	base := validate.DeriveSlug(name, "org")
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := base
		if attempt > 0 {
			slug = base + "-" + validate.SlugSuffix()
		}
		taken, err := s.store.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return slug, nil
		}
	}
	return "", apperr.Conflict(fmt.Sprintf("no free slug for %q, choose one explicitly", name))
}

func (s *Service) Members(ctx context.Context, caller, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	d, err := s.access.Check(ctx, caller, access.Organization(orgID), auth.PermRead)
	if err != nil || !d.Allowed {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// AddMember adds an existing user, found by email, to the organization.
func (s *Service) AddMember(ctx context.Context, caller, orgID uuid.UUID, in AddMemberInput) (*models.OrganizationMember, error) {
	if _, err := s.access.Require(ctx, caller, access.Organization(orgID), auth.PermAdmin); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid role %q", in.Role))
	}
	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, store.Translate(err, "user")
	}

	m := &models.OrganizationMember{OrgID: orgID, UserID: u.ID, Role: in.Role}
	if err := s.store.AddMember(ctx, m); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("user is already a member")
		}
		return nil, store.Translate(err, "organization")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: orgID, UserID: caller, Action: "member.added",
		ResourceType: access.KindOrganization, ResourceID: orgID,
		Details: map[string]any{"user_id": u.ID, "role": in.Role},
	})
	return m, nil
}

// UpdateMemberRole changes a member's role. The owner always stays admin.
func (s *Service) UpdateMemberRole(ctx context.Context, caller, orgID, userID uuid.UUID, role models.Role) error {
	if _, err := s.access.Require(ctx, caller, access.Organization(orgID), auth.PermAdmin); err != nil {
		return err
	}
	if !role.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid role %q", role))
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return store.Translate(err, "organization")
	}
	if userID == org.OwnerID && role != models.RoleAdmin {
		return apperr.Conflict("the organization owner must remain an admin")
	}
	if err := s.store.UpdateMemberRole(ctx, orgID, userID, role); err != nil {
		return store.Translate(err, "member")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: orgID, UserID: caller, Action: "member.role_changed",
		ResourceType: access.KindOrganization, ResourceID: orgID,
		Details: map[string]any{"user_id": userID, "role": role},
	})
	return nil
}

// RemoveMember removes userID from the organization. Admins may remove
// anyone but the owner; any member may remove themselves.
func (s *Service) RemoveMember(ctx context.Context, caller, orgID, userID uuid.UUID) error {
	perm := auth.PermAdmin
	if caller == userID {
		perm = auth.PermRead
	}
	if _, err := s.access.Require(ctx, caller, access.Organization(orgID), perm); err != nil {
		return err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return store.Translate(err, "organization")
	}
	if userID == org.OwnerID {
		return apperr.Conflict("the organization owner cannot be removed")
	}
	if err := s.store.RemoveMember(ctx, orgID, userID); err != nil {
		return store.Translate(err, "member")
	}

	s.activity.Record(ctx, activity.Entry{
		OrgID: orgID, UserID: caller, Action: "member.removed",
		ResourceType: access.KindOrganization, ResourceID: orgID,
		Details: map[string]any{"user_id": userID},
	})
	return nil
}
