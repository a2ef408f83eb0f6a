// Package storetest seeds an in-memory store with one organization and a
// member of every role, for service tests.
package storetest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
)

type Fixture struct {
	Store *store.Memory

	Owner    uuid.UUID
	Member   uuid.UUID
	Viewer   uuid.UUID
	Outsider uuid.UUID

	// Org is owned by Owner; Member and Viewer belong to it too. Outsider
	// only has a personal organization, OutsiderOrg.
	Org         models.Organization
	OutsiderOrg models.Organization

	Project  models.Project
	Scene    models.Scene
	Frame    models.Frame
	Asset    models.Asset
	Category models.AssetCategory
}

func Seed(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()
	f := &Fixture{Store: store.NewMemory()}

	f.Owner, f.Org = NewUser(t, f.Store, "owner@example.com")
	f.Member, _ = NewUser(t, f.Store, "member@example.com")
	f.Viewer, _ = NewUser(t, f.Store, "viewer@example.com")
	f.Outsider, f.OutsiderOrg = NewUser(t, f.Store, "outsider@example.com")

	Must(t, f.Store.AddMember(ctx, &models.OrganizationMember{OrgID: f.Org.ID, UserID: f.Member, Role: models.RoleMember}))
	Must(t, f.Store.AddMember(ctx, &models.OrganizationMember{OrgID: f.Org.ID, UserID: f.Viewer, Role: models.RoleViewer}))

	f.Project = models.Project{OrgID: f.Org.ID, Name: "Pilot", CreatedBy: &f.Owner}
	Must(t, f.Store.CreateProject(ctx, &f.Project))
	f.Scene = models.Scene{ProjectID: f.Project.ID, Name: "Opening"}
	Must(t, f.Store.CreateScene(ctx, &f.Scene))
	f.Frame = models.Frame{SceneID: f.Scene.ID, Prompt: "wide shot of a harbor", Status: models.FrameStatusPending}
	Must(t, f.Store.CreateFrame(ctx, &f.Frame))
	f.Category = models.AssetCategory{OrgID: f.Org.ID, Name: "Heroes"}
	Must(t, f.Store.CreateCategory(ctx, &f.Category))
	f.Asset = models.Asset{ProjectID: f.Project.ID, Type: models.AssetCharacter, Name: "Captain"}
	Must(t, f.Store.CreateAsset(ctx, &f.Asset))
	return f
}

// NewUser creates a user with a personal organization whose slug is derived
// from the email's local part.
func NewUser(t testing.TB, st *store.Memory, email string) (uuid.UUID, models.Organization) {
	t.Helper()
	u := &models.User{Email: email}
	slug := strings.SplitN(email, "@", 2)[0] + "-personal"
	org := &models.Organization{Name: "Personal", Slug: slug, Plan: models.PlanFree}
	Must(t, st.CreateUserWithOrganization(context.Background(), u, org))
	return u.ID, *org
}

func Must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// URLs is a fake storage resolver: values starting with "http" pass
// through, known handles map to their URL and everything else is
// unresolvable.
type URLs map[string]string

func (u URLs) URL(ctx context.Context, value string) *string {
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "http") {
		return &value
	}
	if v, ok := u[value]; ok {
		return &v
	}
	return nil
}

func (u URLs) URLs(ctx context.Context, values []string) []string {
	var out []string
	for _, v := range values {
		if r := u.URL(ctx, v); r != nil {
			out = append(out, *r)
		}
	}
	return out
}
