package activity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/store/storetest"
)

func TestLogAndList(t *testing.T) {
	f := storetest.Seed(t)
	svc := NewService(f.Store, access.NewResolver(f.Store))
	ctx := context.Background()

	for _, action := range []string{"scene.created", "frame.created", "frame.updated"} {
		svc.Record(ctx, Entry{
			OrgID: f.Org.ID, UserID: f.Member, Action: action,
			ResourceType: access.KindScene, ResourceID: f.Scene.ID,
			Details: map[string]any{"n": 1},
		})
	}

	logs, err := svc.List(ctx, f.Viewer, f.Org.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Action != "frame.updated" {
		t.Fatalf("logs = %+v", logs)
	}
	var details map[string]int
	if err := json.Unmarshal(logs[0].Details, &details); err != nil || details["n"] != 1 {
		t.Errorf("details = %s", logs[0].Details)
	}
	if *logs[0].UserID != f.Member || logs[0].ResourceType != "scene" {
		t.Errorf("log = %+v", logs[0])
	}

	if out, _ := svc.List(ctx, f.Outsider, f.Org.ID, 0); out != nil {
		t.Error("outsider can read activity")
	}
}
