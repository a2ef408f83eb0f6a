package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/models"
)

// Memory is a Store held in process memory. One mutex serializes every
// call, so read-then-write sequences such as order assignment are atomic.
// Used when no DATABASE_URL is configured and in tests.
type Memory struct {
	mu sync.RWMutex

	users       map[uuid.UUID]models.User
	orgs        map[uuid.UUID]models.Organization
	members     map[memberKey]models.OrganizationMember
	projects    map[uuid.UUID]models.Project
	scenes      map[uuid.UUID]models.Scene
	frames      map[uuid.UUID]models.Frame
	generations map[uuid.UUID]models.Generation
	assets      map[uuid.UUID]models.Asset
	categories  map[uuid.UUID]models.AssetCategory
	activity    []models.ActivityLog

	now func() time.Time
}

type memberKey struct {
	org  uuid.UUID
	user uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[uuid.UUID]models.User),
		orgs:        make(map[uuid.UUID]models.Organization),
		members:     make(map[memberKey]models.OrganizationMember),
		projects:    make(map[uuid.UUID]models.Project),
		scenes:      make(map[uuid.UUID]models.Scene),
		frames:      make(map[uuid.UUID]models.Frame),
		generations: make(map[uuid.UUID]models.Generation),
		assets:      make(map[uuid.UUID]models.Asset),
		categories:  make(map[uuid.UUID]models.AssetCategory),
		now:         time.Now,
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) stamp(id *uuid.UUID, created, updated *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := m.now().UTC()
	if created != nil {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// ---- users ----

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = m.now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) CreateUserWithOrganization(ctx context.Context, u *models.User, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok && u.ID != uuid.Nil {
		return ErrDuplicate
	}
	if u.Email != "" {
		for _, existing := range m.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return ErrEmailTaken
			}
		}
	}
	if m.slugTaken(org.Slug) {
		return ErrDuplicate
	}
	m.stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	m.users[u.ID] = *u
	org.OwnerID = u.ID
	m.insertOrg(org)
	return nil
}

// ---- organizations ----

func (m *Memory) slugTaken(slug string) bool {
	for _, o := range m.orgs {
		if o.Slug == slug {
			return true
		}
	}
	return false
}

func (m *Memory) insertOrg(org *models.Organization) {
	m.stamp(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	m.orgs[org.ID] = *org
	mem := models.OrganizationMember{OrgID: org.ID, UserID: org.OwnerID, Role: models.RoleAdmin}
	m.stamp(&mem.ID, &mem.CreatedAt, nil)
	m.members[memberKey{org.ID, org.OwnerID}] = mem
}

func (m *Memory) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *Memory) CreateOrganization(ctx context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(org.Slug) {
		return ErrDuplicate
	}
	if _, ok := m.users[org.OwnerID]; !ok {
		return ErrNotFound
	}
	m.insertOrg(org)
	return nil
}

func (m *Memory) SlugExists(ctx context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slugTaken(slug), nil
}

func (m *Memory) ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Membership
	for k, mem := range m.members {
		if k.user != userID {
			continue
		}
		if org, ok := m.orgs[k.org]; ok {
			out = append(out, models.Membership{Organization: org, Role: mem.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Organization.CreatedAt.Before(out[j].Organization.CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[memberKey{orgID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &mem, nil
}

func (m *Memory) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.OrganizationMember
	for k, mem := range m.members {
		if k.org == orgID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AddMember(ctx context.Context, mem *models.OrganizationMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[mem.OrgID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[mem.UserID]; !ok {
		return ErrNotFound
	}
	k := memberKey{mem.OrgID, mem.UserID}
	if _, ok := m.members[k]; ok {
		return ErrDuplicate
	}
	m.stamp(&mem.ID, &mem.CreatedAt, nil)
	m.members[k] = *mem
	return nil
}

func (m *Memory) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{orgID, userID}
	mem, ok := m.members[k]
	if !ok {
		return ErrNotFound
	}
	mem.Role = role
	m.members[k] = mem
	return nil
}

func (m *Memory) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{orgID, userID}
	if _, ok := m.members[k]; !ok {
		return ErrNotFound
	}
	delete(m.members, k)
	return nil
}

// ---- projects ----

func (m *Memory) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListProjects(ctx context.Context, orgID uuid.UUID) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Project
	for _, p := range m.projects {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListRecentProjects(ctx context.Context, orgIDs []uuid.UUID, limit int) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Project
	for _, p := range m.projects {
		if slices.Contains(orgIDs, p.OrgID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateProject(ctx context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[p.OrgID]; !ok {
		return ErrNotFound
	}
	m.stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	m.projects[p.ID] = *p
	return nil
}

func (m *Memory) UpdateProject(ctx context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.OrgID, p.CreatedAt, p.CreatedBy = cur.OrgID, cur.CreatedAt, cur.CreatedBy
	p.UpdatedAt = m.now().UTC()
	m.projects[p.ID] = *p
	return nil
}

func (m *Memory) DeleteProject(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	for sid, s := range m.scenes {
		if s.ProjectID == id {
			m.deleteSceneLocked(sid)
		}
	}
	for aid, a := range m.assets {
		if a.ProjectID == id {
			delete(m.assets, aid)
		}
	}
	delete(m.projects, id)
	return nil
}

// ---- scenes ----

func (m *Memory) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ListScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Scene
	for _, s := range m.scenes {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *Memory) CreateScene(ctx context.Context, s *models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[s.ProjectID]; !ok {
		return ErrNotFound
	}
	maxOrder := 0
	for _, existing := range m.scenes {
		if existing.ProjectID == s.ProjectID && existing.Order > maxOrder {
			maxOrder = existing.Order
		}
	}
	s.Order = maxOrder + 1
	m.stamp(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	m.scenes[s.ID] = *s
	return nil
}

func (m *Memory) UpdateScene(ctx context.Context, s *models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.scenes[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.ProjectID, s.Order, s.CreatedAt = cur.ProjectID, cur.Order, cur.CreatedAt
	s.UpdatedAt = m.now().UTC()
	m.scenes[s.ID] = *s
	return nil
}

func (m *Memory) DeleteScene(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[id]; !ok {
		return ErrNotFound
	}
	m.deleteSceneLocked(id)
	return nil
}

func (m *Memory) deleteSceneLocked(id uuid.UUID) {
	for fid, f := range m.frames {
		if f.SceneID == id {
			m.deleteFrameLocked(fid)
		}
	}
	delete(m.scenes, id)
}

// ---- frames ----

func cloneFrame(f models.Frame) models.Frame {
	f.AssetIDs = slices.Clone(f.AssetIDs)
	return f
}

func (m *Memory) GetFrame(ctx context.Context, id uuid.UUID) (*models.Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.frames[id]
	if !ok {
		return nil, ErrNotFound
	}
	f = cloneFrame(f)
	return &f, nil
}

func (m *Memory) ListFrames(ctx context.Context, sceneID uuid.UUID) ([]models.Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Frame
	for _, f := range m.frames {
		if f.SceneID == sceneID {
			out = append(out, cloneFrame(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *Memory) CreateFrame(ctx context.Context, f *models.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[f.SceneID]; !ok {
		return ErrNotFound
	}
	maxOrder := 0
	for _, existing := range m.frames {
		if existing.SceneID == f.SceneID && existing.Order > maxOrder {
			maxOrder = existing.Order
		}
	}
	f.Order = maxOrder + 1
	m.stamp(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	m.frames[f.ID] = cloneFrame(*f)
	return nil
}

func (m *Memory) UpdateFrame(ctx context.Context, f *models.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.frames[f.ID]
	if !ok {
		return ErrNotFound
	}
	f.SceneID, f.Order, f.CreatedAt = cur.SceneID, cur.Order, cur.CreatedAt
	f.UpdatedAt = m.now().UTC()
	m.frames[f.ID] = cloneFrame(*f)
	return nil
}

func (m *Memory) DeleteFrame(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frames[id]; !ok {
		return ErrNotFound
	}
	m.deleteFrameLocked(id)
	return nil
}

func (m *Memory) deleteFrameLocked(id uuid.UUID) {
	for gid, g := range m.generations {
		if g.FrameID == id {
			delete(m.generations, gid)
		}
	}
	delete(m.frames, id)
}

func (m *Memory) CreateGeneration(ctx context.Context, g *models.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frames[g.FrameID]; !ok {
		return ErrNotFound
	}
	m.stamp(&g.ID, &g.CreatedAt, nil)
	m.generations[g.ID] = *g
	return nil
}

func (m *Memory) ListGenerations(ctx context.Context, frameID uuid.UUID) ([]models.Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Generation
	for _, g := range m.generations {
		if g.FrameID == frameID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- assets ----

func cloneAsset(a models.Asset) models.Asset {
	a.ReferenceImages = slices.Clone(a.ReferenceImages)
	if a.Metadata != nil {
		md := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	return a
}

func (m *Memory) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	a = cloneAsset(a)
	return &a, nil
}

func (m *Memory) ListAssets(ctx context.Context, projectID uuid.UUID, typ *models.AssetType) ([]models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Asset
	for _, a := range m.assets {
		if a.ProjectID != projectID {
			continue
		}
		if typ != nil && a.Type != *typ {
			continue
		}
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateAsset(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[a.ProjectID]; !ok {
		return ErrNotFound
	}
	m.stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	m.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (m *Memory) UpdateAsset(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.assets[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.ProjectID, a.CreatedAt, a.CreatedBy = cur.ProjectID, cur.CreatedAt, cur.CreatedBy
	a.UpdatedAt = m.now().UTC()
	m.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (m *Memory) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

// ---- categories ----

func (m *Memory) GetCategory(ctx context.Context, id uuid.UUID) (*models.AssetCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListCategories(ctx context.Context, orgID uuid.UUID) ([]models.AssetCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssetCategory
	for _, c := range m.categories {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateCategory(ctx context.Context, c *models.AssetCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[c.OrgID]; !ok {
		return ErrNotFound
	}
	m.stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	m.categories[c.ID] = *c
	return nil
}

func (m *Memory) UpdateCategory(ctx context.Context, c *models.AssetCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.categories[c.ID]
	if !ok {
		return ErrNotFound
	}
	c.OrgID, c.CreatedAt = cur.OrgID, cur.CreatedAt
	c.UpdatedAt = m.now().UTC()
	m.categories[c.ID] = *c
	return nil
}

func (m *Memory) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return ErrNotFound
	}
	for _, a := range m.assets {
		if a.CategoryID != nil && *a.CategoryID == id {
			return ErrInUse
		}
	}
	delete(m.categories, id)
	return nil
}

// ---- activity ----

func (m *Memory) AppendActivity(ctx context.Context, l *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamp(&l.ID, &l.CreatedAt, nil)
	m.activity = append(m.activity, *l)
	return nil
}

func (m *Memory) ListActivity(ctx context.Context, orgID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ActivityLog
	for i := len(m.activity) - 1; i >= 0; i-- {
		if m.activity[i].OrgID == orgID {
			out = append(out, m.activity[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
