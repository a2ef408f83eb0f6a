package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storygraph/storygraph/internal/models"
)

const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// classify maps driver errors onto store sentinels.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", what, ErrDuplicate)
		case pgFKViolation:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

func (p *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func execAffecting(ctx context.Context, q interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}, what, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return classify(err, what)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// lockRow takes a row lock on the parent of an ordered child insert. FOR NO
// KEY UPDATE conflicts with itself but not with the key-share locks that
// foreign key checks take.
func lockRow(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR NO KEY UPDATE`, id).Scan(&locked)
	return classify(err, "lock "+table)
}

// ---- users ----

const userColumns = `id, email, name, image, bio, role, tier, credits, email_notifications, marketing_emails, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Bio, &u.Role, &u.Tier, &u.Credits,
		&u.EmailNotifications, &u.MarketingEmails, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get user")
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, classify(err, "get user by email")
	}
	return u, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	err := p.db.QueryRow(ctx,
		`UPDATE users SET name = $2, image = $3, bio = $4, role = $5, tier = $6, credits = $7,
		        email_notifications = $8, marketing_emails = $9, updated_at = now()
		 WHERE id = $1 RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Image, u.Bio, u.Role, u.Tier, u.Credits, u.EmailNotifications, u.MarketingEmails,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return classify(err, "update user")
}

func (p *Postgres) CreateUserWithOrganization(ctx context.Context, u *models.User, org *models.Organization) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (id, email, name, image, email_notifications, marketing_emails)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
			u.ID, u.Email, u.Name, u.Image, u.EmailNotifications, u.MarketingEmails,
		).Scan(&u.CreatedAt, &u.UpdatedAt)
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		if err != nil {
			return classify(err, "insert user")
		}
		org.OwnerID = u.ID
		return insertOrg(ctx, tx, org)
	})
}

// ---- organizations ----

func insertOrg(ctx context.Context, tx pgx.Tx, org *models.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO organizations (id, name, slug, owner_id, plan) VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		org.ID, org.Name, org.Slug, org.OwnerID, org.Plan,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return classify(err, "insert organization")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO organization_members (id, org_id, user_id, role) VALUES ($1, $2, $3, $4)`,
		uuid.New(), org.ID, org.OwnerID, models.RoleAdmin,
	)
	return classify(err, "insert owner membership")
}

const orgColumns = `id, name, slug, owner_id, plan, created_at, updated_at`

func (p *Postgres) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var o models.Organization
	err := p.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.Plan, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, classify(err, "get organization")
	}
	return &o, nil
}

func (p *Postgres) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		return insertOrg(ctx, tx, org)
	})
}

func (p *Postgres) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (p *Postgres) ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	rows, err := p.db.Query(ctx,
		`SELECT o.id, o.name, o.slug, o.owner_id, o.plan, o.created_at, o.updated_at, m.role
		 FROM organization_members m JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id = $1 ORDER BY o.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		var ms models.Membership
		o := &ms.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.Plan, &o.CreatedAt, &o.UpdatedAt, &ms.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	var m models.OrganizationMember
	err := p.db.QueryRow(ctx,
		`SELECT id, org_id, user_id, role, created_at FROM organization_members
		 WHERE org_id = $1 AND user_id = $2`, orgID, userID,
	).Scan(&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, classify(err, "get member")
	}
	return &m, nil
}

func (p *Postgres) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, org_id, user_id, role, created_at FROM organization_members
		 WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []models.OrganizationMember
	for rows.Next() {
		var m models.OrganizationMember
		if err := rows.Scan(&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) AddMember(ctx context.Context, m *models.OrganizationMember) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO organization_members (id, org_id, user_id, role) VALUES ($1, $2, $3, $4)
		 RETURNING created_at`, m.ID, m.OrgID, m.UserID, m.Role,
	).Scan(&m.CreatedAt)
	return classify(err, "add member")
}

func (p *Postgres) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	return execAffecting(ctx, p.db, "update member role",
		`UPDATE organization_members SET role = $3 WHERE org_id = $1 AND user_id = $2`, orgID, userID, role)
}

func (p *Postgres) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	return execAffecting(ctx, p.db, "remove member",
		`DELETE FROM organization_members WHERE org_id = $1 AND user_id = $2`, orgID, userID)
}

// ---- projects ----

const projectColumns = `id, org_id, name, description, thumbnail, is_public, created_by, created_at, updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var pr models.Project
	err := row.Scan(&pr.ID, &pr.OrgID, &pr.Name, &pr.Description, &pr.Thumbnail, &pr.IsPublic,
		&pr.CreatedBy, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func collectProjects(rows pgx.Rows) ([]models.Project, error) {
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		pr, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

func (p *Postgres) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	pr, err := scanProject(p.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get project")
	}
	return pr, nil
}

func (p *Postgres) ListProjects(ctx context.Context, orgID uuid.UUID) ([]models.Project, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return collectProjects(rows)
}

func (p *Postgres) ListRecentProjects(ctx context.Context, orgIDs []uuid.UUID, limit int) ([]models.Project, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE org_id = ANY($1)
		 ORDER BY updated_at DESC LIMIT $2`, orgIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent projects: %w", err)
	}
	return collectProjects(rows)
}

func (p *Postgres) CreateProject(ctx context.Context, pr *models.Project) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO projects (id, org_id, name, description, thumbnail, is_public, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		pr.ID, pr.OrgID, pr.Name, pr.Description, pr.Thumbnail, pr.IsPublic, pr.CreatedBy,
	).Scan(&pr.CreatedAt, &pr.UpdatedAt)
	return classify(err, "insert project")
}

func (p *Postgres) UpdateProject(ctx context.Context, pr *models.Project) error {
	err := p.db.QueryRow(ctx,
		`UPDATE projects SET name = $2, description = $3, thumbnail = $4, is_public = $5, updated_at = now()
		 WHERE id = $1 RETURNING org_id, created_by, created_at, updated_at`,
		pr.ID, pr.Name, pr.Description, pr.Thumbnail, pr.IsPublic,
	).Scan(&pr.OrgID, &pr.CreatedBy, &pr.CreatedAt, &pr.UpdatedAt)
	return classify(err, "update project")
}

func (p *Postgres) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		steps := []struct{ what, sql string }{
			{"delete project generations", `DELETE FROM generations WHERE frame_id IN (
				SELECT f.id FROM frames f JOIN scenes s ON s.id = f.scene_id WHERE s.project_id = $1)`},
			{"delete project frames", `DELETE FROM frames WHERE scene_id IN (SELECT id FROM scenes WHERE project_id = $1)`},
			{"delete project scenes", `DELETE FROM scenes WHERE project_id = $1`},
			{"delete project assets", `DELETE FROM assets WHERE project_id = $1`},
		}
		for _, s := range steps {
			if _, err := tx.Exec(ctx, s.sql, id); err != nil {
				return fmt.Errorf("%s: %w", s.what, err)
			}
		}
		return execAffecting(ctx, tx, "delete project", `DELETE FROM projects WHERE id = $1`, id)
	})
}

// ---- scenes ----

const sceneColumns = `id, project_id, name, description, "order", created_at, updated_at`

func scanScene(row pgx.Row) (*models.Scene, error) {
	var s models.Scene
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Description, &s.Order, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	s, err := scanScene(p.db.QueryRow(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get scene")
	}
	return s, nil
}

func (p *Postgres) ListScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE project_id = $1 ORDER BY "order"`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []models.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateScene(ctx context.Context, s *models.Scene) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		// Creators of sibling scenes queue on the project row, so each one
		// reads the max(order) its predecessor committed.
		if err := lockRow(ctx, tx, "projects", s.ProjectID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO scenes (id, project_id, name, description, "order")
			 SELECT $1, $2, $3, $4, COALESCE(MAX("order"), 0) + 1 FROM scenes WHERE project_id = $2
			 RETURNING "order", created_at, updated_at`,
			s.ID, s.ProjectID, s.Name, s.Description,
		).Scan(&s.Order, &s.CreatedAt, &s.UpdatedAt)
		return classify(err, "insert scene")
	})
}

func (p *Postgres) UpdateScene(ctx context.Context, s *models.Scene) error {
	err := p.db.QueryRow(ctx,
		`UPDATE scenes SET name = $2, description = $3, updated_at = now()
		 WHERE id = $1 RETURNING project_id, "order", created_at, updated_at`,
		s.ID, s.Name, s.Description,
	).Scan(&s.ProjectID, &s.Order, &s.CreatedAt, &s.UpdatedAt)
	return classify(err, "update scene")
}

func (p *Postgres) DeleteScene(ctx context.Context, id uuid.UUID) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM generations WHERE frame_id IN (SELECT id FROM frames WHERE scene_id = $1)`, id); err != nil {
			return fmt.Errorf("delete scene generations: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM frames WHERE scene_id = $1`, id); err != nil {
			return fmt.Errorf("delete scene frames: %w", err)
		}
		return execAffecting(ctx, tx, "delete scene", `DELETE FROM scenes WHERE id = $1`, id)
	})
}

// ---- frames ----

const frameColumns = `id, scene_id, "order", prompt, status, image_storage_id, asset_ids, created_at, updated_at`

func scanFrame(row pgx.Row) (*models.Frame, error) {
	var f models.Frame
	if err := row.Scan(&f.ID, &f.SceneID, &f.Order, &f.Prompt, &f.Status, &f.ImageStorageID,
		&f.AssetIDs, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (p *Postgres) GetFrame(ctx context.Context, id uuid.UUID) (*models.Frame, error) {
	f, err := scanFrame(p.db.QueryRow(ctx, `SELECT `+frameColumns+` FROM frames WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get frame")
	}
	return f, nil
}

func (p *Postgres) ListFrames(ctx context.Context, sceneID uuid.UUID) ([]models.Frame, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+frameColumns+` FROM frames WHERE scene_id = $1 ORDER BY "order"`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []models.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateFrame(ctx context.Context, f *models.Frame) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "scenes", f.SceneID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO frames (id, scene_id, "order", prompt, status, image_storage_id, asset_ids)
			 SELECT $1, $2, COALESCE(MAX("order"), 0) + 1, $3, $4, $5, $6 FROM frames WHERE scene_id = $2
			 RETURNING "order", created_at, updated_at`,
			f.ID, f.SceneID, f.Prompt, f.Status, f.ImageStorageID, f.AssetIDs,
		).Scan(&f.Order, &f.CreatedAt, &f.UpdatedAt)
		return classify(err, "insert frame")
	})
}

func (p *Postgres) UpdateFrame(ctx context.Context, f *models.Frame) error {
	err := p.db.QueryRow(ctx,
		`UPDATE frames SET prompt = $2, status = $3, image_storage_id = $4, asset_ids = $5, updated_at = now()
		 WHERE id = $1 RETURNING scene_id, "order", created_at, updated_at`,
		f.ID, f.Prompt, f.Status, f.ImageStorageID, f.AssetIDs,
	).Scan(&f.SceneID, &f.Order, &f.CreatedAt, &f.UpdatedAt)
	return classify(err, "update frame")
}

func (p *Postgres) DeleteFrame(ctx context.Context, id uuid.UUID) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM generations WHERE frame_id = $1`, id); err != nil {
			return fmt.Errorf("delete frame generations: %w", err)
		}
		return execAffecting(ctx, tx, "delete frame", `DELETE FROM frames WHERE id = $1`, id)
	})
}

func (p *Postgres) CreateGeneration(ctx context.Context, g *models.Generation) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO generations (id, frame_id, user_id, prompt, status, image_storage_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		g.ID, g.FrameID, g.UserID, g.Prompt, g.Status, g.ImageStorageID,
	).Scan(&g.CreatedAt)
	return classify(err, "insert generation")
}

func (p *Postgres) ListGenerations(ctx context.Context, frameID uuid.UUID) ([]models.Generation, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, frame_id, user_id, prompt, status, image_storage_id, created_at
		 FROM generations WHERE frame_id = $1 ORDER BY created_at DESC`, frameID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []models.Generation
	for rows.Next() {
		var g models.Generation
		if err := rows.Scan(&g.ID, &g.FrameID, &g.UserID, &g.Prompt, &g.Status, &g.ImageStorageID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ---- assets ----

const assetColumns = `id, project_id, category_id, type, name, description, reference_images, metadata, created_by, created_at, updated_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var a models.Asset
	if err := row.Scan(&a.ID, &a.ProjectID, &a.CategoryID, &a.Type, &a.Name, &a.Description,
		&a.ReferenceImages, &a.Metadata, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, err := scanAsset(p.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get asset")
	}
	return a, nil
}

func (p *Postgres) ListAssets(ctx context.Context, projectID uuid.UUID, typ *models.AssetType) ([]models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE project_id = $1`
	args := []any{projectID}
	if typ != nil {
		query += ` AND type = $2`
		args = append(args, *typ)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateAsset(ctx context.Context, a *models.Asset) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO assets (id, project_id, category_id, type, name, description, reference_images, metadata, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`,
		a.ID, a.ProjectID, a.CategoryID, a.Type, a.Name, a.Description, a.ReferenceImages, a.Metadata, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return classify(err, "insert asset")
}

func (p *Postgres) UpdateAsset(ctx context.Context, a *models.Asset) error {
	err := p.db.QueryRow(ctx,
		`UPDATE assets SET category_id = $2, type = $3, name = $4, description = $5,
		        reference_images = $6, metadata = $7, updated_at = now()
		 WHERE id = $1 RETURNING project_id, created_by, created_at, updated_at`,
		a.ID, a.CategoryID, a.Type, a.Name, a.Description, a.ReferenceImages, a.Metadata,
	).Scan(&a.ProjectID, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return classify(err, "update asset")
}

func (p *Postgres) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	return execAffecting(ctx, p.db, "delete asset", `DELETE FROM assets WHERE id = $1`, id)
}

// ---- categories ----

const categoryColumns = `id, org_id, name, description, icon, created_at, updated_at`

func scanCategory(row pgx.Row) (*models.AssetCategory, error) {
	var c models.AssetCategory
	if err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Description, &c.Icon, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) GetCategory(ctx context.Context, id uuid.UUID) (*models.AssetCategory, error) {
	c, err := scanCategory(p.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM asset_categories WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "get category")
	}
	return c, nil
}

func (p *Postgres) ListCategories(ctx context.Context, orgID uuid.UUID) ([]models.AssetCategory, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+categoryColumns+` FROM asset_categories WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.AssetCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateCategory(ctx context.Context, c *models.AssetCategory) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO asset_categories (id, org_id, name, description, icon)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Description, c.Icon,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return classify(err, "insert category")
}

func (p *Postgres) UpdateCategory(ctx context.Context, c *models.AssetCategory) error {
	err := p.db.QueryRow(ctx,
		`UPDATE asset_categories SET name = $2, description = $3, icon = $4, updated_at = now()
		 WHERE id = $1 RETURNING org_id, created_at, updated_at`,
		c.ID, c.Name, c.Description, c.Icon,
	).Scan(&c.OrgID, &c.CreatedAt, &c.UpdatedAt)
	return classify(err, "update category")
}

func (p *Postgres) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		// Lock the category row so an asset insert referencing it waits on
		// the FK check until this transaction settles.
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM asset_categories WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return classify(err, "lock category")
		}
		var inUse bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM assets WHERE category_id = $1)`, id).Scan(&inUse); err != nil {
			return fmt.Errorf("check category usage: %w", err)
		}
		if inUse {
			return ErrInUse
		}
		return execAffecting(ctx, tx, "delete category", `DELETE FROM asset_categories WHERE id = $1`, id)
	})
}

// ---- activity ----

func (p *Postgres) AppendActivity(ctx context.Context, l *models.ActivityLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := p.db.QueryRow(ctx,
		`INSERT INTO activity_logs (id, org_id, user_id, action, resource_type, resource_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		l.ID, l.OrgID, l.UserID, l.Action, l.ResourceType, l.ResourceID, l.Details,
	).Scan(&l.CreatedAt)
	return classify(err, "insert activity log")
}

func (p *Postgres) ListActivity(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, org_id, user_id, action, resource_type, resource_id, details, created_at
		 FROM activity_logs WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityLog
	for rows.Next() {
		var l models.ActivityLog
		if err := rows.Scan(&l.ID, &l.OrgID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
