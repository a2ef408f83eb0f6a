package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeAPI serves the storage routes the uploader touches. Uploads land on
// the same server under /put/.
type fakeAPI struct {
	srv       *httptest.Server
	uploaded  map[string]string
	putStatus int
	resolve   bool
	rateLimit bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{uploaded: map[string]string{}, putStatus: http.StatusOK, resolve: true}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/storage/upload-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"code":"UNAUTHORIZED","message":"authentication required"}}`)
			return
		}
		if f.rateLimit {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"code":"RATE_LIMITED","message":"slow down"}}`)
			return
		}
		json.NewEncoder(w).Encode(UploadTarget{UploadURL: f.srv.URL + "/put/u1/obj", StorageID: "u1/obj"})
	})
	mux.HandleFunc("PUT /put/{owner}/{obj}", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Header.Get("Authorization") != "" {
			t.Error("session token leaked to the upload URL")
		}
		f.uploaded[r.PathValue("owner")+"/"+r.PathValue("obj")] = string(b)
		w.WriteHeader(f.putStatus)
	})
	mux.HandleFunc("POST /api/v1/storage/url", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StorageID string `json:"storage_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if !f.resolve {
			io.WriteString(w, `{"url":null}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.test/" + req.StorageID})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func TestUploadCommits(t *testing.T) {
	f := newFakeAPI(t)
	u := NewUploader(New(f.srv.URL, "tok"))

	var committed []Uploaded
	got, err := u.Upload(context.Background(), strings.NewReader("png-bytes"), 9, "image/png",
		func(ctx context.Context, up Uploaded) error {
			committed = append(committed, up)
			return nil
		})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got.StorageID != "u1/obj" || got.URL != "https://cdn.test/u1/obj" {
		t.Errorf("uploaded = %+v", got)
	}
	if f.uploaded["u1/obj"] != "png-bytes" {
		t.Errorf("stored bytes = %q", f.uploaded["u1/obj"])
	}
	if len(committed) != 1 {
		t.Errorf("commit called %d times", len(committed))
	}
}

func TestUploadNeverCommitsOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeAPI)
		token string
		check func(t *testing.T, err error)
	}{
		{
			name:  "unauthenticated",
			token: "",
			check: func(t *testing.T, err error) {
				if !IsCode(err, "UNAUTHORIZED") {
					t.Errorf("err = %v", err)
				}
			},
		},
		{
			name:  "rate limited",
			token: "tok",
			setup: func(f *fakeAPI) { f.rateLimit = true },
			check: func(t *testing.T, err error) {
				if !IsCode(err, "RATE_LIMITED") {
					t.Errorf("err = %v", err)
				}
			},
		},
		{
			name:  "put rejected",
			token: "tok",
			setup: func(f *fakeAPI) { f.putStatus = http.StatusForbidden },
			check: func(t *testing.T, err error) {
				if err == nil || errors.Is(err, ErrUnresolved) {
					t.Errorf("err = %v", err)
				}
			},
		},
		{
			name:  "unresolved",
			token: "tok",
			setup: func(f *fakeAPI) { f.resolve = false },
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrUnresolved) {
					t.Errorf("err = %v, want ErrUnresolved", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			u := NewUploader(New(f.srv.URL, tt.token))
			called := false
			_, err := u.Upload(context.Background(), strings.NewReader("x"), 1, "image/png",
				func(ctx context.Context, up Uploaded) error {
					called = true
					return nil
				})
			if called {
				t.Error("commit was called")
			}
			tt.check(t, err)
		})
	}
}

func TestCommitErrorSurfaces(t *testing.T) {
	f := newFakeAPI(t)
	u := NewUploader(New(f.srv.URL, "tok"))
	boom := errors.New("boom")
	_, err := u.Upload(context.Background(), strings.NewReader("x"), 1, "", func(ctx context.Context, up Uploaded) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
