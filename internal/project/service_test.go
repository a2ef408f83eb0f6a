package project

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store/storetest"
)

func newService(t *testing.T) (*Service, *storetest.Fixture) {
	t.Helper()
	f := storetest.Seed(t)
	ac := access.NewResolver(f.Store)
	urls := storetest.URLs{"thumbs/pilot.png": "https://cdn.test/thumbs/pilot.png"}
	return NewService(f.Store, ac, urls, activity.NewService(f.Store, ac)), f
}

func ptr[T any](v T) *T { return &v }

func TestQueriesDegradeForOutsiders(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	for _, caller := range []uuid.UUID{f.Outsider, uuid.Nil} {
		list, err := svc.List(ctx, caller, f.Org.ID)
		if err != nil || list != nil {
			t.Errorf("List(%s) = %v, %v", caller, list, err)
		}
		p, err := svc.Get(ctx, caller, f.Project.ID)
		if err != nil || p != nil {
			t.Errorf("Get(%s) = %v, %v", caller, p, err)
		}
	}

	p, err := svc.Get(ctx, f.Viewer, f.Project.ID)
	if err != nil || p == nil || p.ID != f.Project.ID {
		t.Fatalf("viewer Get = %v, %v", p, err)
	}
}

func TestCreate(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller uuid.UUID
		in     CreateInput
		want   apperr.Kind
		status int
	}{
		{"member", f.Member, CreateInput{Name: "  Sequel  ", IsPublic: ptr(true)}, "", 0},
		{"with thumbnail", f.Owner, CreateInput{Name: "Thumb", Thumbnail: ptr("thumbs/pilot.png")}, "", 0},
		{"viewer", f.Viewer, CreateInput{Name: "Nope"}, apperr.KindUnauthorized, 403},
		{"outsider", f.Outsider, CreateInput{Name: "Nope"}, apperr.KindUnauthorized, 403},
		{"no session", uuid.Nil, CreateInput{Name: "Nope"}, apperr.KindUnauthorized, 401},
		{"empty name", f.Member, CreateInput{Name: "   "}, apperr.KindValidation, 422},
		{"unresolvable thumbnail", f.Member, CreateInput{Name: "X", Thumbnail: ptr("missing")}, apperr.KindValidation, 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Create(ctx, tt.caller, f.Org.ID, tt.in)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				if p.OrgID != f.Org.ID || p.CreatedBy == nil || *p.CreatedBy != tt.caller {
					t.Errorf("project = %+v", p)
				}
				return
			}
			if apperr.KindOf(err) != tt.want || apperr.Status(err) != tt.status {
				t.Errorf("err = %v, want %s/%d", err, tt.want, tt.status)
			}
		})
	}

	list, _ := svc.List(ctx, f.Member, f.Org.ID)
	if len(list) != 3 {
		t.Fatalf("projects = %d, want 3", len(list))
	}
	for _, p := range list {
		if p.Name == "Sequel" && !p.IsPublic {
			t.Error("Sequel should be public and trimmed")
		}
	}
}

func TestUpdate(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	p, err := svc.Update(ctx, f.Member, f.Project.ID, UpdateInput{Name: ptr("Renamed"), Description: ptr("  a pilot ")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Renamed" || *p.Description != "a pilot" || p.OrgID != f.Org.ID {
		t.Errorf("project = %+v", p)
	}

	if _, err := svc.Update(ctx, f.Viewer, f.Project.ID, UpdateInput{Name: ptr("x")}); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("viewer update err = %v", err)
	}
	if _, err := svc.Update(ctx, f.Owner, uuid.New(), UpdateInput{Name: ptr("x")}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing project err = %v", err)
	}
}

func TestRemoveIsAdminOnlyAndCascades(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	if err := svc.Remove(ctx, f.Member, f.Project.ID); apperr.Status(err) != 403 {
		t.Fatalf("member remove err = %v", err)
	}
	if err := svc.Remove(ctx, f.Owner, f.Project.ID); err != nil {
		t.Fatalf("owner remove: %v", err)
	}

	if scenes, _ := f.Store.ListScenes(ctx, f.Project.ID); len(scenes) != 0 {
		t.Errorf("scenes left: %d", len(scenes))
	}
	if frames, _ := f.Store.ListFrames(ctx, f.Scene.ID); len(frames) != 0 {
		t.Errorf("frames left: %d", len(frames))
	}
	if assets, _ := f.Store.ListAssets(ctx, f.Project.ID, nil); len(assets) != 0 {
		t.Errorf("assets left: %d", len(assets))
	}
	if _, err := f.Store.GetFrame(ctx, f.Frame.ID); err == nil {
		t.Error("frame survived project delete")
	}

	logs, _ := f.Store.ListActivity(ctx, f.Org.ID, 0)
	if len(logs) == 0 || logs[0].Action != "project.deleted" {
		t.Errorf("activity = %+v", logs)
	}
}

func TestGetRecent(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	own := models.Project{OrgID: f.OutsiderOrg.ID, Name: "Side project"}
	storetest.Must(t, f.Store.CreateProject(ctx, &own))

	all, err := svc.GetRecent(ctx, f.Outsider, nil)
	if err != nil || len(all) != 1 || all[0].ID != own.ID {
		t.Fatalf("outsider recent = %v, %v", all, err)
	}
	scoped, err := svc.GetRecent(ctx, f.Outsider, &f.Org.ID)
	if err != nil || scoped != nil {
		t.Errorf("outsider recent in foreign org = %v, %v", scoped, err)
	}
	mine, _ := svc.GetRecent(ctx, f.Viewer, &f.Org.ID)
	if len(mine) != 1 || mine[0].ID != f.Project.ID {
		t.Errorf("viewer recent = %v", mine)
	}
	if anon, _ := svc.GetRecent(ctx, uuid.Nil, nil); anon != nil {
		t.Errorf("anonymous recent = %v", anon)
	}
}
