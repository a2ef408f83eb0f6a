package store_test

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/database"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/migrations"
)

// openPostgres connects to DATABASE_URL and migrates it, or skips the test
// when no database is configured.
func openPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 10, MinConns: 1})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.RunMigrations(ctx, pool, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewPostgres(pool)
}

// seedProject creates a fresh user, its organization and one project. Names
// are unique so runs against a shared database do not collide.
func seedProject(t *testing.T, st *store.Postgres) (models.User, models.Project) {
	t.Helper()
	ctx := context.Background()
	tag := uuid.NewString()[:8]
	u := models.User{Email: "pg-" + tag + "@example.com"}
	org := models.Organization{Name: "Postgres " + tag, Slug: "pg-" + tag, Plan: models.PlanFree}
	if err := st.CreateUserWithOrganization(ctx, &u, &org); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := models.Project{OrgID: org.ID, Name: "Pilot", CreatedBy: &u.ID}
	if err := st.CreateProject(ctx, &p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return u, p
}

func TestPostgresConcurrentCreatesGetDenseOrders(t *testing.T) {
	st := openPostgres(t)
	_, project := seedProject(t, st)
	ctx := context.Background()

	const n = 20
	scenes := make([]models.Scene, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range scenes {
		wg.Add(1)
		go func(s *models.Scene) {
			defer wg.Done()
			s.ProjectID = project.ID
			s.Name = "Scene"
			errs <- st.CreateScene(ctx, s)
		}(&scenes[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create scene: %v", err)
		}
	}
	assertDense(t, "scene", func() []int {
		out := make([]int, n)
		for i, s := range scenes {
			out[i] = s.Order
		}
		return out
	}())

	scene := scenes[0]
	frames := make([]models.Frame, n)
	errs = make(chan error, n)
	for i := range frames {
		wg.Add(1)
		go func(f *models.Frame) {
			defer wg.Done()
			f.SceneID = scene.ID
			f.Prompt = "wide shot"
			f.Status = models.FrameStatusPending
			errs <- st.CreateFrame(ctx, f)
		}(&frames[i])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create frame: %v", err)
		}
	}

	stored, err := st.ListFrames(ctx, scene.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != n {
		t.Fatalf("listed %d frames, want %d", len(stored), n)
	}
	orders := make([]int, len(stored))
	for i, f := range stored {
		orders[i] = f.Order
	}
	assertDense(t, "frame", orders)
}

func assertDense(t *testing.T, what string, orders []int) {
	t.Helper()
	sorted := append([]int(nil), orders...)
	sort.Ints(sorted)
	for i, o := range sorted {
		if o != i+1 {
			t.Fatalf("%s orders = %v, want 1..%d", what, sorted, len(sorted))
		}
	}
}

func TestPostgresCreateFrameUnknownScene(t *testing.T) {
	st := openPostgres(t)
	f := models.Frame{SceneID: uuid.New(), Prompt: "x", Status: models.FrameStatusPending}
	if err := st.CreateFrame(context.Background(), &f); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPostgresDeleteCategoryInUse(t *testing.T) {
	st := openPostgres(t)
	_, project := seedProject(t, st)
	ctx := context.Background()

	cat := models.AssetCategory{OrgID: project.OrgID, Name: "Heroes"}
	if err := st.CreateCategory(ctx, &cat); err != nil {
		t.Fatal(err)
	}
	asset := models.Asset{ProjectID: project.ID, CategoryID: &cat.ID, Type: models.AssetCharacter, Name: "Captain"}
	if err := st.CreateAsset(ctx, &asset); err != nil {
		t.Fatal(err)
	}

	err := st.DeleteCategory(ctx, cat.ID)
	if !errors.Is(err, store.ErrInUse) {
		t.Fatalf("delete referenced category err = %v, want ErrInUse", err)
	}
	if got := store.Translate(err, "category"); apperr.KindOf(got) != apperr.KindConflict {
		t.Errorf("Translate = %v, want CONFLICT", got)
	}
	if _, err := st.GetCategory(ctx, cat.ID); err != nil {
		t.Errorf("category gone after refused delete: %v", err)
	}

	if err := st.DeleteAsset(ctx, asset.ID); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("delete unused category: %v", err)
	}
	if _, err := st.GetCategory(ctx, cat.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get deleted category err = %v", err)
	}
}

func TestPostgresDeleteProjectCascades(t *testing.T) {
	st := openPostgres(t)
	u, project := seedProject(t, st)
	ctx := context.Background()

	scene := models.Scene{ProjectID: project.ID, Name: "Opening"}
	if err := st.CreateScene(ctx, &scene); err != nil {
		t.Fatal(err)
	}
	frame := models.Frame{SceneID: scene.ID, Prompt: "harbor", Status: models.FrameStatusPending}
	if err := st.CreateFrame(ctx, &frame); err != nil {
		t.Fatal(err)
	}
	gen := models.Generation{FrameID: frame.ID, UserID: &u.ID, Prompt: "harbor", Status: models.FrameStatusPending}
	if err := st.CreateGeneration(ctx, &gen); err != nil {
		t.Fatal(err)
	}
	asset := models.Asset{ProjectID: project.ID, Type: models.AssetProp, Name: "Lamp"}
	if err := st.CreateAsset(ctx, &asset); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := st.GetScene(ctx, scene.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("scene survived: %v", err)
	}
	if _, err := st.GetFrame(ctx, frame.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("frame survived: %v", err)
	}
	if _, err := st.GetAsset(ctx, asset.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("asset survived: %v", err)
	}
}

func TestPostgresEmailCollisions(t *testing.T) {
	st := openPostgres(t)
	u, _ := seedProject(t, st)
	ctx := context.Background()

	tag := uuid.NewString()[:8]
	dup := models.User{Email: "PG-" + u.Email[len("pg-"):]}
	org := models.Organization{Name: "Dup", Slug: "pg-dup-" + tag, Plan: models.PlanFree}
	if err := st.CreateUserWithOrganization(ctx, &dup, &org); !errors.Is(err, store.ErrEmailTaken) {
		t.Errorf("case-folded duplicate email err = %v, want ErrEmailTaken", err)
	}

	for i, slug := range []string{"pg-a-" + tag, "pg-b-" + tag} {
		noEmail := models.User{}
		org := models.Organization{Name: "Phone", Slug: slug, Plan: models.PlanFree}
		if err := st.CreateUserWithOrganization(ctx, &noEmail, &org); err != nil {
			t.Errorf("user %d without email: %v", i, err)
		}
	}
}
