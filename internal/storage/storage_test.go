package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/ratelimit"
)

// fakeSupabase serves the storage endpoints for objects in known.
func fakeSupabase(t *testing.T, known map[string]bool) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/media/"):
			path := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/sign/media/")
			if !known[path] {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"statusCode":"404","error":"not_found","message":"Object not found"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"signedURL": "/object/sign/media/" + path + "?token=t"})
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/upload/sign/media/"):
			path := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/upload/sign/media/")
			json.NewEncoder(w).Encode(map[string]string{"url": "/object/upload/sign/media/" + path + "?token=u"})
		case r.Method == http.MethodDelete:
			path := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/media/")
			if !known[path] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(known, path)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type mapCache map[string]string

func (m mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m[key]
	if !ok {
		return fmt.Errorf("miss")
	}
	*dest.(*string) = v
	return nil
}

func (m mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m[key] = value.(string)
	return nil
}

func (m mapCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func TestResolverURL(t *testing.T) {
	srv, calls := fakeSupabase(t, map[string]bool{"u1/a.png": true})
	cache := mapCache{}
	r := NewResolver(NewSupabaseStorage(srv.URL, "service-key", "media"), cache)
	ctx := context.Background()

	if got := r.URL(ctx, "https://x/y.png"); got == nil || *got != "https://x/y.png" {
		t.Errorf("URL(https) = %v", got)
	}
	if got := r.URL(ctx, ""); got != nil {
		t.Errorf("URL(empty) = %v", *got)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("passthrough made %d network calls", *calls)
	}

	got := r.URL(ctx, "u1/a.png")
	want := srv.URL + "/storage/v1/object/sign/media/u1/a.png?token=t"
	if got == nil || *got != want {
		t.Fatalf("URL(handle) = %v, want %s", got, want)
	}
	r.URL(ctx, "u1/a.png")
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("second resolve not cached: %d calls", n)
	}

	if got := r.URL(ctx, "u1/missing.png"); got != nil {
		t.Errorf("URL(missing) = %v", *got)
	}
}

func TestResolverURLs(t *testing.T) {
	srv, _ := fakeSupabase(t, map[string]bool{"u1/a.png": true})
	r := NewResolver(NewSupabaseStorage(srv.URL, "service-key", "media"), nil)
	ctx := context.Background()

	urls := r.URLs(ctx, []string{"u1/a.png", "u1/gone.png", "http://cdn/x.png"})
	if len(urls) != 2 || urls[1] != "http://cdn/x.png" {
		t.Errorf("URLs = %v", urls)
	}
	if urls := r.URLs(ctx, []string{"u1/gone.png"}); urls != nil {
		t.Errorf("nothing resolved should be nil, got %#v", urls)
	}
	if urls := NewResolver(nil, nil).URLs(ctx, []string{"u1/a.png"}); urls != nil {
		t.Errorf("unconfigured backend resolved %v", urls)
	}
}

func TestResolverRejectsEscapingHandles(t *testing.T) {
	srv, calls := fakeSupabase(t, map[string]bool{"u1/a.png": true})
	r := NewResolver(NewSupabaseStorage(srv.URL, "service-key", "media"), nil)
	ctx := context.Background()

	for _, h := range []string{
		"../other-bucket/secret",
		"u1/../../other-bucket/secret",
		"/u1/a.png",
		"u1//a.png",
		"u1/./a.png",
		"u1/a.png/",
		`u1\..\secret`,
		"u1/a.png?download=1",
		"u1/%2e%2e/secret",
	} {
		if got := r.URL(ctx, h); got != nil {
			t.Errorf("URL(%q) = %s, want nil", h, *got)
		}
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("invalid handles reached storage: %d calls", n)
	}
	if got := r.URL(ctx, "u1/a.png"); got == nil {
		t.Error("valid handle did not resolve")
	}
}

func TestSupabaseStorageRejectsEscapingPaths(t *testing.T) {
	srv, calls := fakeSupabase(t, map[string]bool{})
	s := NewSupabaseStorage(srv.URL, "service-key", "media")
	ctx := context.Background()

	if _, err := s.SignedURL(ctx, "../other/secret", time.Minute); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("SignedURL err = %v", err)
	}
	if _, err := s.SignedUploadURL(ctx, "/abs"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("SignedUploadURL err = %v", err)
	}
	if err := s.Delete(ctx, "u1//x"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Delete err = %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("invalid paths reached storage: %d calls", n)
	}
}

func TestGetURLsSkipsEscapingHandles(t *testing.T) {
	srv, _ := fakeSupabase(t, map[string]bool{"u1/a.png": true})
	backend := NewSupabaseStorage(srv.URL, "service-key", "media")
	svc := NewService(backend, NewResolver(backend, nil), ratelimit.NewMemory(ratelimit.UploadURLs))
	ctx := context.Background()
	caller := uuid.New()

	if got := svc.GetURL(ctx, caller, "../other-bucket/secret"); got != nil {
		t.Errorf("GetURL = %s, want nil", *got)
	}
	urls, err := svc.GetURLs(ctx, caller, []string{"u1/a.png", "../other-bucket/secret"})
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 {
		t.Errorf("GetURLs = %v", urls)
	}
}

func TestGenerateUploadURLRateLimit(t *testing.T) {
	srv, _ := fakeSupabase(t, map[string]bool{})
	backend := NewSupabaseStorage(srv.URL, "service-key", "media")
	limiter := ratelimit.NewMemory(ratelimit.UploadURLs)
	defer limiter.Close()
	svc := NewService(backend, NewResolver(backend, nil), limiter)
	ctx := context.Background()
	caller := uuid.New()

	for i := 0; i < 5; i++ {
		target, err := svc.GenerateUploadURL(ctx, caller)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if !strings.HasPrefix(target.StorageID, caller.String()+"/") || !strings.Contains(target.UploadURL, "token=u") {
			t.Errorf("target = %+v", target)
		}
	}
	_, err := svc.GenerateUploadURL(ctx, caller)
	if apperr.KindOf(err) != apperr.KindRateLimited || apperr.Status(err) != 429 {
		t.Fatalf("6th call err = %v", err)
	}

	if _, err := svc.GenerateUploadURL(ctx, uuid.New()); err != nil {
		t.Errorf("other user limited: %v", err)
	}
	if _, err := svc.GenerateUploadURL(ctx, uuid.Nil); apperr.Status(err) != 401 {
		t.Errorf("anonymous err = %v", err)
	}
}

func TestDeleteFileOwnership(t *testing.T) {
	caller := uuid.New()
	mine := caller.String() + "/a.png"
	theirs := uuid.NewString() + "/b.png"
	srv, _ := fakeSupabase(t, map[string]bool{mine: true, theirs: true})
	backend := NewSupabaseStorage(srv.URL, "service-key", "media")
	svc := NewService(backend, NewResolver(backend, nil), ratelimit.NewMemory(ratelimit.UploadURLs))
	ctx := context.Background()

	if err := svc.DeleteFile(ctx, caller, theirs); apperr.Status(err) != 403 {
		t.Errorf("delete foreign file err = %v", err)
	}
	if err := svc.DeleteFile(ctx, caller, caller.String()+"/../"+theirs); apperr.Status(err) != 403 {
		t.Errorf("path traversal err = %v", err)
	}
	if err := svc.DeleteFile(ctx, caller, mine); err != nil {
		t.Fatalf("delete own file: %v", err)
	}
	if err := svc.DeleteFile(ctx, caller, mine); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second delete err = %v", err)
	}
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	a := Placeholder("character", "Captain Nemo")
	if a != Placeholder("character", "Captain Nemo") {
		t.Error("placeholder not deterministic")
	}
	if a == Placeholder("character", "Ishmael") {
		t.Error("different names share a placeholder")
	}
	if !strings.Contains(a, "seed=Captain+Nemo") {
		t.Errorf("placeholder = %s", a)
	}
	if got := URLOrPlaceholder(nil, "prop", "Lamp"); got != Placeholder("prop", "Lamp") {
		t.Errorf("URLOrPlaceholder(nil) = %s", got)
	}
}
