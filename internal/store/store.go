package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/models"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate reports a unique-key collision (id, slug, membership pair).
	ErrDuplicate = errors.New("store: duplicate")
	// ErrEmailTaken reports that another user already holds the email.
	// Empty emails never collide.
	ErrEmailTaken = errors.New("store: email taken")
	// ErrInUse reports a delete blocked by rows that still reference the target.
	ErrInUse = errors.New("store: in use")
)

// Translate maps a store error onto the client-visible error kinds. what
// names the entity for the message, e.g. "scene".
func Translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, ErrDuplicate):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, ErrEmailTaken):
		return apperr.Conflict("email is already linked to another account")
	case errors.Is(err, ErrInUse):
		return apperr.Conflict(what + " is still in use")
	}
	return apperr.Wrap(apperr.KindInternal, "storage failure", err)
}

// Store is the persistence boundary. Every multi-row mutation is atomic:
// either all of its writes land or none do.
type Store interface {
	Ping(ctx context.Context) error

	// Users
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	// CreateUserWithOrganization inserts the user, its personal organization
	// and an admin membership in one unit.
	CreateUserWithOrganization(ctx context.Context, u *models.User, org *models.Organization) error

	// Organizations and memberships
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	// CreateOrganization inserts org and makes org.OwnerID its admin.
	CreateOrganization(ctx context.Context, org *models.Organization) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error)
	AddMember(ctx context.Context, m *models.OrganizationMember) error
	UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error

	// Projects
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, orgID uuid.UUID) ([]models.Project, error)
	ListRecentProjects(ctx context.Context, orgIDs []uuid.UUID, limit int) ([]models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, p *models.Project) error
	// DeleteProject removes the project with its scenes, frames, frame
	// generations and assets.
	DeleteProject(ctx context.Context, id uuid.UUID) error

	// Scenes. CreateScene assigns Order = max(order in project) + 1.
	GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	ListScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error)
	CreateScene(ctx context.Context, s *models.Scene) error
	UpdateScene(ctx context.Context, s *models.Scene) error
	// DeleteScene removes the scene and all of its frames.
	DeleteScene(ctx context.Context, id uuid.UUID) error

	// Frames. CreateFrame assigns Order = max(order in scene) + 1.
	GetFrame(ctx context.Context, id uuid.UUID) (*models.Frame, error)
	ListFrames(ctx context.Context, sceneID uuid.UUID) ([]models.Frame, error)
	CreateFrame(ctx context.Context, f *models.Frame) error
	UpdateFrame(ctx context.Context, f *models.Frame) error
	DeleteFrame(ctx context.Context, id uuid.UUID) error

	CreateGeneration(ctx context.Context, g *models.Generation) error
	ListGenerations(ctx context.Context, frameID uuid.UUID) ([]models.Generation, error)

	// Assets
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	ListAssets(ctx context.Context, projectID uuid.UUID, typ *models.AssetType) ([]models.Asset, error)
	CreateAsset(ctx context.Context, a *models.Asset) error
	UpdateAsset(ctx context.Context, a *models.Asset) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error

	// Asset categories. DeleteCategory returns ErrInUse while any asset
	// references the category.
	GetCategory(ctx context.Context, id uuid.UUID) (*models.AssetCategory, error)
	ListCategories(ctx context.Context, orgID uuid.UUID) ([]models.AssetCategory, error)
	CreateCategory(ctx context.Context, c *models.AssetCategory) error
	UpdateCategory(ctx context.Context, c *models.AssetCategory) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	AppendActivity(ctx context.Context, l *models.ActivityLog) error
	ListActivity(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityLog, error)
}
