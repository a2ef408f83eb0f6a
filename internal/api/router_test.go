package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/models"
	"github.com/storygraph/storygraph/internal/store"
)

const testSecret = "router-test-secret"

type fakeBackend struct{}

func (fakeBackend) SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	if strings.HasSuffix(path, "missing") {
		return "", errors.New("object not found")
	}
	return "https://cdn.test/" + path + "?token=t", nil
}

func (fakeBackend) SignedUploadURL(ctx context.Context, path string) (string, error) {
	return "https://cdn.test/upload/" + path, nil
}

func (fakeBackend) Delete(ctx context.Context, path string) error { return nil }

type sentEmail struct{ kind, to string }

type fakeDispatcher struct{ sent []sentEmail }

func (f *fakeDispatcher) SendPasswordReset(ctx context.Context, to, token, url string) error {
	f.sent = append(f.sent, sentEmail{"reset", to})
	return nil
}

func (f *fakeDispatcher) SendVerification(ctx context.Context, to, code string) error {
	f.sent = append(f.sent, sentEmail{"verification", to})
	return nil
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	store  *store.Memory
	emails *fakeDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{CORSOrigins: []string{"*"}},
		Auth:      config.AuthConfig{JWTSecret: testSecret, ServiceKey: "svc-key", ServiceKeyHeader: "X-Service-Key"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	ts := &testServer{t: t, store: store.NewMemory(), emails: &fakeDispatcher{}}
	h := NewRouter(Deps{
		Config:  cfg,
		Store:   ts.store,
		Storage: fakeBackend{},
		Emails:  ts.emails,
	}).Setup()
	ts.srv = httptest.NewServer(h)
	t.Cleanup(ts.srv.Close)
	return ts
}

func token(t *testing.T, sub uuid.UUID, email string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// do sends a request and decodes a JSON response into out when out is
// non-nil. It returns the response for status and header checks.
func (ts *testServer) do(method, path, tok string, body any, out any) *http.Response {
	ts.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	if err != nil {
		ts.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func TestEndToEndTenantIsolation(t *testing.T) {
	ts := newTestServer(t)
	a := token(t, uuid.New(), "a@example.com")
	b := token(t, uuid.New(), "b@example.com")

	var orgs []models.Membership
	expectStatus(t, ts.do("GET", "/api/v1/organizations", a, nil, &orgs), 200)
	if len(orgs) != 1 || orgs[0].Role != models.RoleAdmin {
		t.Fatalf("memberships = %+v", orgs)
	}
	orgID := orgs[0].Organization.ID

	var p models.Project
	expectStatus(t, ts.do("POST", "/api/v1/organizations/"+orgID.String()+"/projects", a,
		map[string]any{"name": "Pilot"}, &p), 201)

	var s1 models.Scene
	expectStatus(t, ts.do("POST", "/api/v1/projects/"+p.ID.String()+"/scenes", a,
		map[string]any{"name": "Opening"}, &s1), 201)
	if s1.Order != 1 {
		t.Errorf("scene order = %d, want 1", s1.Order)
	}

	var f1, f2 models.Frame
	expectStatus(t, ts.do("POST", "/api/v1/scenes/"+s1.ID.String()+"/frames", a,
		map[string]any{"prompt": "wide shot"}, &f1), 201)
	expectStatus(t, ts.do("POST", "/api/v1/scenes/"+s1.ID.String()+"/frames", a,
		map[string]any{"prompt": "close up"}, &f2), 201)
	if f1.Order != 1 || f2.Order != 2 {
		t.Errorf("frame orders = %d, %d", f1.Order, f2.Order)
	}

	var env errorEnvelope
	resp := ts.do("PATCH", "/api/v1/frames/"+f1.ID.String(), b, map[string]any{"prompt": "x"}, &env)
	expectStatus(t, resp, http.StatusForbidden)
	if env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q", env.Error.Code)
	}

	var got models.Frame
	expectStatus(t, ts.do("GET", "/api/v1/frames/"+f1.ID.String(), a, nil, &got), 200)
	if got.Prompt != "wide shot" {
		t.Errorf("prompt changed to %q", got.Prompt)
	}

	// The outsider sees nothing rather than an error.
	var hidden *models.Frame
	expectStatus(t, ts.do("GET", "/api/v1/frames/"+f1.ID.String(), b, nil, &hidden), 200)
	if hidden != nil {
		t.Errorf("outsider read frame %+v", hidden)
	}
	var frames []models.Frame
	expectStatus(t, ts.do("GET", "/api/v1/scenes/"+s1.ID.String()+"/frames", b, nil, &frames), 200)
	if len(frames) != 0 {
		t.Errorf("outsider listed %d frames", len(frames))
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	a := token(t, uuid.New(), "a@example.com")

	var orgs []models.Membership
	ts.do("GET", "/api/v1/organizations", a, nil, &orgs)
	orgPath := "/api/v1/organizations/" + orgs[0].Organization.ID.String()

	var c models.AssetCategory
	expectStatus(t, ts.do("POST", orgPath+"/categories", a, map[string]any{"name": "Heroes"}, &c), 201)
	var p models.Project
	expectStatus(t, ts.do("POST", orgPath+"/projects", a, map[string]any{"name": "Pilot"}, &p), 201)
	expectStatus(t, ts.do("POST", "/api/v1/projects/"+p.ID.String()+"/assets", a,
		map[string]any{"type": "character", "name": "Captain", "category_id": c.ID}, nil), 201)

	tests := []struct {
		name   string
		method string
		path   string
		tok    string
		body   any
		status int
		code   string
	}{
		{"anonymous mutation", "POST", orgPath + "/projects", "", map[string]any{"name": "x"}, 401, "UNAUTHORIZED"},
		{"bad token", "GET", "/api/v1/organizations", "not-a-jwt", nil, 401, "UNAUTHORIZED"},
		{"malformed id", "PATCH", "/api/v1/projects/nope", a, map[string]any{"name": "x"}, 404, "NOT_FOUND"},
		{"missing entity", "DELETE", "/api/v1/scenes/" + uuid.NewString(), a, nil, 404, "NOT_FOUND"},
		{"blank name", "POST", orgPath + "/projects", a, map[string]any{"name": "  "}, 422, "VALIDATION_ERROR"},
		{"bad json", "POST", orgPath + "/projects", a, "{", 422, "VALIDATION_ERROR"},
		{"unknown asset type", "GET", "/api/v1/projects/" + p.ID.String() + "/assets?type=vehicle", a, nil, 422, "VALIDATION_ERROR"},
		{"category in use", "DELETE", "/api/v1/categories/" + c.ID.String(), a, nil, 409, "CONFLICT"},
		{"unresolvable thumbnail", "PATCH", "/api/v1/projects/" + p.ID.String(), a, map[string]any{"thumbnail": "u/missing"}, 422, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			resp := ts.do(tt.method, tt.path, tt.tok, tt.body, &env)
			expectStatus(t, resp, tt.status)
			if env.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
		})
	}
}

func TestAnonymousQueries(t *testing.T) {
	ts := newTestServer(t)

	var orgs []models.Membership
	expectStatus(t, ts.do("GET", "/api/v1/organizations", "", nil, &orgs), 200)
	if len(orgs) != 0 {
		t.Errorf("anonymous orgs = %d", len(orgs))
	}
	var me *models.User
	expectStatus(t, ts.do("GET", "/api/v1/users/me", "", nil, &me), 200)
	if me != nil {
		t.Errorf("anonymous viewer = %+v", me)
	}
}

func TestMalformedIDQueriesAnswerEmpty(t *testing.T) {
	ts := newTestServer(t)
	a := token(t, uuid.New(), "a@example.com")

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/organizations/nope", "null"},
		{"/api/v1/organizations/nope/members", "[]"},
		{"/api/v1/organizations/nope/activity", "[]"},
		{"/api/v1/organizations/nope/projects", "[]"},
		{"/api/v1/organizations/nope/categories", "[]"},
		{"/api/v1/projects/nope", "null"},
		{"/api/v1/projects/nope/scenes", "[]"},
		{"/api/v1/projects/nope/assets", "[]"},
		{"/api/v1/scenes/nope", "null"},
		{"/api/v1/scenes/nope/frames", "[]"},
		{"/api/v1/frames/nope", "null"},
		{"/api/v1/frames/nope/generations", "[]"},
		{"/api/v1/assets/nope", "null"},
		{"/api/v1/categories/nope", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var raw json.RawMessage
			expectStatus(t, ts.do("GET", tt.path, a, nil, &raw), 200)
			if string(raw) != tt.want {
				t.Errorf("body = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestUploadURLRateLimit(t *testing.T) {
	ts := newTestServer(t)
	a := token(t, uuid.New(), "a@example.com")

	for i := 0; i < 5; i++ {
		var target struct {
			UploadURL string `json:"upload_url"`
			StorageID string `json:"storage_id"`
		}
		expectStatus(t, ts.do("POST", "/api/v1/storage/upload-url", a, nil, &target), 200)
		if target.UploadURL == "" || !strings.Contains(target.StorageID, "/") {
			t.Fatalf("target = %+v", target)
		}
	}
	var env errorEnvelope
	resp := ts.do("POST", "/api/v1/storage/upload-url", a, nil, &env)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if env.Error.Code != "RATE_LIMITED" || resp.Header.Get("Retry-After") == "" {
		t.Errorf("code = %q, retry-after = %q", env.Error.Code, resp.Header.Get("Retry-After"))
	}
}

func TestStorageResolution(t *testing.T) {
	ts := newTestServer(t)
	a := token(t, uuid.New(), "a@example.com")

	var one struct {
		URL *string `json:"url"`
	}
	expectStatus(t, ts.do("POST", "/api/v1/storage/url", a, map[string]string{"storage_id": "u/file"}, &one), 200)
	if one.URL == nil || !strings.HasPrefix(*one.URL, "https://cdn.test/u/file") {
		t.Errorf("url = %v", one.URL)
	}
	expectStatus(t, ts.do("GET", "/api/v1/storage/url?id=u/missing", a, nil, &one), 200)
	if one.URL != nil {
		t.Errorf("unresolvable url = %q", *one.URL)
	}

	var many struct {
		URLs []string `json:"urls"`
	}
	expectStatus(t, ts.do("POST", "/api/v1/storage/urls", a,
		map[string]any{"storage_ids": []string{"u/a", "u/missing", "https://x/y.png"}}, &many), 200)
	if len(many.URLs) != 2 || many.URLs[1] != "https://x/y.png" {
		t.Errorf("urls = %v", many.URLs)
	}
}

func TestDeleteFileOwnership(t *testing.T) {
	ts := newTestServer(t)
	sub := uuid.New()
	a := token(t, sub, "a@example.com")

	expectStatus(t, ts.do("DELETE", "/api/v1/storage/files/"+sub.String()+"/obj", a, nil, nil), 204)
	expectStatus(t, ts.do("DELETE", "/api/v1/storage/files/"+uuid.NewString()+"/obj", a, nil, nil), 403)
}

func TestEmailRoutesRequireServiceKey(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"email": "ada@example.com", "code": "123456"}

	expectStatus(t, ts.do("POST", "/api/v1/emails/verification", "", body, nil), 401)

	req, _ := http.NewRequest("POST", ts.srv.URL+"/api/v1/emails/verification",
		strings.NewReader(`{"email":"ada@example.com","code":"123456"}`))
	req.Header.Set("X-Service-Key", "svc-key")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusAccepted)
	if len(ts.emails.sent) != 1 || ts.emails.sent[0].to != "ada@example.com" {
		t.Errorf("sent = %+v", ts.emails.sent)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	expectStatus(t, ts.do("GET", "/healthz", "", nil, nil), 200)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	expectStatus(t, ts.do("GET", "/readyz", "", nil, &ready), 200)
	if ready.Checks["database"] != "ok" {
		t.Errorf("checks = %v", ready.Checks)
	}
}
