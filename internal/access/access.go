// Package access resolves whether a caller may act on an entity.
//
// Every entity is owned, through a fixed chain of parents, by exactly one
// organization:
//
//	frame    -> scene -> project -> organization
//	scene    -> project -> organization
//	asset    -> project -> organization
//	category -> organization
//
// The caller's membership row in that organization is the only source of
// authorization truth. Check walks the chain with direct key lookups, loads
// the membership and compares its role against the required permission.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
)

type Kind string

const (
	KindOrganization Kind = "organization"
	KindProject      Kind = "project"
	KindScene        Kind = "scene"
	KindFrame        Kind = "frame"
	KindAsset        Kind = "asset"
	KindCategory     Kind = "category"
)

type Resource struct {
	Kind Kind
	ID   uuid.UUID
}

func Organization(id uuid.UUID) Resource { return Resource{KindOrganization, id} }
func Project(id uuid.UUID) Resource      { return Resource{KindProject, id} }
func Scene(id uuid.UUID) Resource        { return Resource{KindScene, id} }
func Frame(id uuid.UUID) Resource        { return Resource{KindFrame, id} }
func Asset(id uuid.UUID) Resource        { return Resource{KindAsset, id} }
func Category(id uuid.UUID) Resource     { return Resource{KindCategory, id} }

func (r Resource) String() string { return fmt.Sprintf("%s %s", r.Kind, r.ID) }

// Reason explains a denial.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoSession
	ReasonNotFound
	ReasonNotMember
	ReasonInsufficientRole
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoSession:
		return "no-session"
	case ReasonNotFound:
		return "not-found"
	case ReasonNotMember:
		return "not-member"
	case ReasonInsufficientRole:
		return "insufficient-role"
	}
	return "unknown"
}

// Decision is the outcome of Check. When Allowed, OrgID and Membership
// describe the grant; otherwise Reason says why not.
type Decision struct {
	Allowed    bool
	Reason     Reason
	Resource   Resource
	OrgID      uuid.UUID
	Membership *models.OrganizationMember
}

func allow(res Resource, m *models.OrganizationMember) Decision {
	return Decision{Allowed: true, Resource: res, OrgID: m.OrgID, Membership: m}
}

func deny(res Resource, reason Reason) Decision {
	return Decision{Reason: reason, Resource: res}
}

// Err converts a denial into the error a mutation returns. It is nil for an
// allowed decision.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		if d.Allowed {
			return nil
		}
		return apperr.Unauthorized("access denied")
	case ReasonNoSession:
		return apperr.Unauthenticated()
	case ReasonNotFound:
		return apperr.NotFound(fmt.Sprintf("%s not found", d.Resource.Kind))
	case ReasonNotMember:
		return apperr.Unauthorized("not a member of this organization")
	case ReasonInsufficientRole:
		return apperr.Unauthorized("your role does not permit this action")
	}
	return apperr.Unauthorized("access denied")
}

// Lookup is the subset of the store the resolver walks.
type Lookup interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	GetFrame(ctx context.Context, id uuid.UUID) (*models.Frame, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.AssetCategory, error)
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)
}

// parentFunc returns the next link up the ownership chain.
type parentFunc func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error)

var chain = map[Kind]parentFunc{
	KindProject: func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error) {
		p, err := l.GetProject(ctx, id)
		if err != nil {
			return Resource{}, err
		}
		return Organization(p.OrgID), nil
	},
	KindScene: func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error) {
		s, err := l.GetScene(ctx, id)
		if err != nil {
			return Resource{}, err
		}
		return Project(s.ProjectID), nil
	},
	KindFrame: func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error) {
		f, err := l.GetFrame(ctx, id)
		if err != nil {
			return Resource{}, err
		}
		return Scene(f.SceneID), nil
	},
	KindAsset: func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error) {
		a, err := l.GetAsset(ctx, id)
		if err != nil {
			return Resource{}, err
		}
		return Project(a.ProjectID), nil
	},
	KindCategory: func(ctx context.Context, l Lookup, id uuid.UUID) (Resource, error) {
		c, err := l.GetCategory(ctx, id)
		if err != nil {
			return Resource{}, err
		}
		return Organization(c.OrgID), nil
	},
}

type Resolver struct {
	lookup Lookup
}

func NewResolver(l Lookup) *Resolver {
	return &Resolver{lookup: l}
}

// OwningOrg walks res up to its organization. A missing link yields
// store.ErrNotFound.
func (r *Resolver) OwningOrg(ctx context.Context, res Resource) (uuid.UUID, error) {
	cur := res
	for cur.Kind != KindOrganization {
		parent, ok := chain[cur.Kind]
		if !ok {
			return uuid.Nil, fmt.Errorf("no ownership chain for %s", cur.Kind)
		}
		next, err := parent(ctx, r.lookup, cur.ID)
		if err != nil {
			return uuid.Nil, err
		}
		cur = next
	}
	if _, err := r.lookup.GetOrganization(ctx, cur.ID); err != nil {
		return uuid.Nil, err
	}
	return cur.ID, nil
}

// Check decides whether caller holds perm on res. Infrastructure failures
// come back as error; every authorization outcome is a Decision.
func (r *Resolver) Check(ctx context.Context, caller uuid.UUID, res Resource, perm auth.Permission) (Decision, error) {
	if caller == uuid.Nil {
		return deny(res, ReasonNoSession), nil
	}

	orgID, err := r.OwningOrg(ctx, res)
	if errors.Is(err, store.ErrNotFound) {
		return deny(res, ReasonNotFound), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("resolve owner of %s: %w", res, err)
	}

	m, err := r.lookup.GetMember(ctx, orgID, caller)
	if errors.Is(err, store.ErrNotFound) {
		return deny(res, ReasonNotMember), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("get membership: %w", err)
	}

	if !auth.RoleAllows(m.Role, perm) {
		d := deny(res, ReasonInsufficientRole)
		d.OrgID = orgID
		d.Membership = m
		return d, nil
	}
	return allow(res, m), nil
}

// Require is Check for mutations: any denial becomes an error.
func (r *Resolver) Require(ctx context.Context, caller uuid.UUID, res Resource, perm auth.Permission) (Decision, error) {
	d, err := r.Check(ctx, caller, res, perm)
	if err != nil {
		return d, apperr.Wrap(apperr.KindInternal, "authorization check failed", err)
	}
	if !d.Allowed {
		return d, d.Err()
	}
	return d, nil
}
