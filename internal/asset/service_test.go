package asset

import (
	"context"
	"strings"
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
	urls := storetest.URLs{"refs/a.png": "https://cdn.test/refs/a.png"}
	return NewService(f.Store, ac, urls, activity.NewService(f.Store, ac)), f
}

func TestCreateAndList(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, f.Member, f.Project.ID, CreateInput{
		Type:            models.AssetEnvironment,
		Name:            "Harbor",
		CategoryID:      &f.Category.ID,
		ReferenceImages: []string{"refs/a.png", "https://example.com/b.png"},
		Metadata:        map[string]any{"time": "dusk", "scale": 1.5, "indoor": false},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.ReferenceURLs) != 2 || a.ReferenceURLs[0] != "https://cdn.test/refs/a.png" {
		t.Errorf("reference urls = %v", a.ReferenceURLs)
	}
	if a.PreviewURL != "https://cdn.test/refs/a.png" {
		t.Errorf("preview = %q", a.PreviewURL)
	}

	env := models.AssetEnvironment
	list, err := svc.List(ctx, f.Viewer, f.Project.ID, &env)
	if err != nil || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("List(environment) = %v, %v", list, err)
	}
	all, _ := svc.List(ctx, f.Viewer, f.Project.ID, nil)
	if len(all) != 2 {
		t.Errorf("List(all) = %d", len(all))
	}
	for _, got := range all {
		if got.ID == f.Asset.ID && !strings.Contains(got.PreviewURL, "seed=Captain") {
			t.Errorf("asset without images should get a placeholder, got %q", got.PreviewURL)
		}
	}
	if out, _ := svc.List(ctx, f.Outsider, f.Project.ID, nil); out != nil {
		t.Error("outsider can list assets")
	}
}

func TestCreateRejects(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	foreignCat := models.AssetCategory{OrgID: f.OutsiderOrg.ID, Name: "Theirs"}
	storetest.Must(t, f.Store.CreateCategory(ctx, &foreignCat))

	tests := []struct {
		name   string
		caller uuid.UUID
		in     CreateInput
		want   apperr.Kind
	}{
		{"viewer", f.Viewer, CreateInput{Type: models.AssetProp, Name: "x"}, apperr.KindUnauthorized},
		{"bad type", f.Member, CreateInput{Type: "vehicle", Name: "x"}, apperr.KindValidation},
		{"nested metadata", f.Member, CreateInput{Type: models.AssetProp, Name: "x", Metadata: map[string]any{"k": []any{1}}}, apperr.KindValidation},
		{"foreign category", f.Member, CreateInput{Type: models.AssetProp, Name: "x", CategoryID: &foreignCat.ID}, apperr.KindValidation},
		{"unresolvable reference", f.Member, CreateInput{Type: models.AssetProp, Name: "x", ReferenceImages: []string{"nope"}}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.caller, f.Project.ID, tt.in); apperr.KindOf(err) != tt.want {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestUpdateClearsCategory(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	a, err := svc.Update(ctx, f.Member, f.Asset.ID, UpdateInput{CategoryID: &f.Category.ID})
	if err != nil || a.CategoryID == nil {
		t.Fatalf("set category: %v, %v", a, err)
	}
	nilID := uuid.Nil
	a, err = svc.Update(ctx, f.Member, f.Asset.ID, UpdateInput{CategoryID: &nilID})
	if err != nil || a.CategoryID != nil {
		t.Fatalf("clear category: %v, %v", a, err)
	}
}

func TestRemove(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	if err := svc.Remove(ctx, f.Outsider, f.Asset.ID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("outsider remove err = %v", err)
	}
	if err := svc.Remove(ctx, f.Member, f.Asset.ID); err != nil {
		t.Fatal(err)
	}
	if a, _ := svc.Get(ctx, f.Owner, f.Asset.ID); a != nil {
		t.Error("asset still readable")
	}
}
