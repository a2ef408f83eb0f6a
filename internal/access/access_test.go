package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
)

type fixture struct {
	st      *store.Memory
	owner   uuid.UUID
	member  uuid.UUID
	viewer  uuid.UUID
	outside uuid.UUID
	org     models.Organization
	project models.Project
	scene   models.Scene
	frame   models.Frame
	asset   models.Asset
	cat     models.AssetCategory
}

func newUser(t *testing.T, st *store.Memory, email, slug string) (uuid.UUID, models.Organization) {
	t.Helper()
	u := &models.User{Email: email}
	org := &models.Organization{Name: "Personal", Slug: slug, Plan: models.PlanFree}
	if err := st.CreateUserWithOrganization(context.Background(), u, org); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID, *org
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{st: store.NewMemory()}

	f.owner, f.org = newUser(t, f.st, "owner@example.com", "owner-org")
	f.member, _ = newUser(t, f.st, "member@example.com", "member-org")
	f.viewer, _ = newUser(t, f.st, "viewer@example.com", "viewer-org")
	f.outside, _ = newUser(t, f.st, "outside@example.com", "outside-org")

	for id, role := range map[uuid.UUID]models.Role{f.member: models.RoleMember, f.viewer: models.RoleViewer} {
		if err := f.st.AddMember(ctx, &models.OrganizationMember{OrgID: f.org.ID, UserID: id, Role: role}); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	f.project = models.Project{OrgID: f.org.ID, Name: "Pilot"}
	mustDo(t, f.st.CreateProject(ctx, &f.project))
	f.scene = models.Scene{ProjectID: f.project.ID, Name: "Opening"}
	mustDo(t, f.st.CreateScene(ctx, &f.scene))
	f.frame = models.Frame{SceneID: f.scene.ID, Prompt: "wide shot", Status: models.FrameStatusPending}
	mustDo(t, f.st.CreateFrame(ctx, &f.frame))
	f.asset = models.Asset{ProjectID: f.project.ID, Type: models.AssetCharacter, Name: "Ada"}
	mustDo(t, f.st.CreateAsset(ctx, &f.asset))
	f.cat = models.AssetCategory{OrgID: f.org.ID, Name: "Heroes"}
	mustDo(t, f.st.CreateCategory(ctx, &f.cat))
	return f
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) resources() []Resource {
	return []Resource{
		Organization(f.org.ID),
		Project(f.project.ID),
		Scene(f.scene.ID),
		Frame(f.frame.ID),
		Asset(f.asset.ID),
		Category(f.cat.ID),
	}
}

func TestOwningOrgWalksChain(t *testing.T) {
	f := setup(t)
	r := NewResolver(f.st)
	for _, res := range f.resources() {
		got, err := r.OwningOrg(context.Background(), res)
		if err != nil {
			t.Fatalf("OwningOrg(%s): %v", res, err)
		}
		if got != f.org.ID {
			t.Errorf("OwningOrg(%s) = %s, want %s", res, got, f.org.ID)
		}
	}
}

func TestCheckTenantIsolation(t *testing.T) {
	f := setup(t)
	r := NewResolver(f.st)
	for _, res := range f.resources() {
		for _, perm := range []auth.Permission{auth.PermRead, auth.PermWrite, auth.PermAdmin} {
			d, err := r.Check(context.Background(), f.outside, res, perm)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if d.Allowed || d.Reason != ReasonNotMember {
				t.Errorf("outsider %s on %s: allowed=%v reason=%s", perm, res, d.Allowed, d.Reason)
			}
			if apperr.KindOf(d.Err()) != apperr.KindUnauthorized {
				t.Errorf("outsider error kind = %s", apperr.KindOf(d.Err()))
			}
		}
	}
}

func TestCheckRoleGating(t *testing.T) {
	f := setup(t)
	r := NewResolver(f.st)
	tests := []struct {
		name   string
		caller uuid.UUID
		perm   auth.Permission
		want   bool
	}{
		{"viewer reads", f.viewer, auth.PermRead, true},
		{"viewer writes", f.viewer, auth.PermWrite, false},
		{"viewer admins", f.viewer, auth.PermAdmin, false},
		{"member writes", f.member, auth.PermWrite, true},
		{"member admins", f.member, auth.PermAdmin, false},
		{"owner admins", f.owner, auth.PermAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, res := range f.resources() {
				d, err := r.Check(context.Background(), tt.caller, res, tt.perm)
				if err != nil {
					t.Fatal(err)
				}
				if d.Allowed != tt.want {
					t.Errorf("%s: allowed = %v, want %v", res, d.Allowed, tt.want)
				}
				if !tt.want && d.Reason != ReasonInsufficientRole {
					t.Errorf("%s: reason = %s", res, d.Reason)
				}
				if tt.want && d.OrgID != f.org.ID {
					t.Errorf("%s: org = %s", res, d.OrgID)
				}
			}
		})
	}
}

func TestCheckMissingEntityAndSession(t *testing.T) {
	f := setup(t)
	r := NewResolver(f.st)
	ctx := context.Background()

	d, err := r.Check(ctx, uuid.Nil, Frame(f.frame.ID), auth.PermRead)
	if err != nil || d.Allowed || d.Reason != ReasonNoSession {
		t.Fatalf("no session: %+v, %v", d, err)
	}
	if apperr.Status(d.Err()) != 401 {
		t.Errorf("no session status = %d", apperr.Status(d.Err()))
	}

	d, err = r.Check(ctx, f.owner, Frame(uuid.New()), auth.PermRead)
	if err != nil || d.Reason != ReasonNotFound {
		t.Fatalf("missing frame: %+v, %v", d, err)
	}
	if apperr.KindOf(d.Err()) != apperr.KindNotFound {
		t.Errorf("missing frame kind = %s", apperr.KindOf(d.Err()))
	}

	// A broken link in the middle of the chain reads as not found.
	mustDo(t, f.st.DeleteScene(ctx, f.scene.ID))
	d, _ = r.Check(ctx, f.owner, Frame(f.frame.ID), auth.PermRead)
	if d.Reason != ReasonNotFound {
		t.Errorf("orphaned frame reason = %s", d.Reason)
	}
}

func TestRequire(t *testing.T) {
	f := setup(t)
	r := NewResolver(f.st)
	if _, err := r.Require(context.Background(), f.member, Project(f.project.ID), auth.PermWrite); err != nil {
		t.Fatalf("member write: %v", err)
	}
	_, err := r.Require(context.Background(), f.viewer, Project(f.project.ID), auth.PermWrite)
	if apperr.KindOf(err) != apperr.KindUnauthorized || apperr.Status(err) != 403 {
		t.Errorf("viewer write err = %v", err)
	}
}
