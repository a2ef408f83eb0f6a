package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when the storage service has no object at
// the requested path.
var ErrObjectNotFound = errors.New("storage: object not found")

// ErrInvalidPath is returned for object paths that could escape the bucket.
var ErrInvalidPath = errors.New("storage: invalid object path")

// ValidPath reports whether path is a bucket-relative object path: no
// leading slash, no empty, "." or ".." segments, no backslashes or
// URL-significant characters.
func ValidPath(path string) bool {
	if path == "" || strings.ContainsAny(path, "\\?#%") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Backend is the object store the API signs URLs against.
type Backend interface {
	SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
	SignedUploadURL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// SupabaseStorage talks to the Supabase storage REST API for one bucket.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SignedURL mints a time-limited download URL for path.
func (s *SupabaseStorage) SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	if !ValidPath(path) {
		return "", ErrInvalidPath
	}
	body := map[string]int{"expiresIn": int(expiresIn.Seconds())}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := s.post(ctx, fmt.Sprintf("/object/sign/%s/%s", s.bucket, path), body, &out); err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign url: empty response")
	}
	return s.absolute(out.SignedURL), nil
}

// SignedUploadURL mints a single-use URL the client PUTs the file to.
func (s *SupabaseStorage) SignedUploadURL(ctx context.Context, path string) (string, error) {
	if !ValidPath(path) {
		return "", ErrInvalidPath
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := s.post(ctx, fmt.Sprintf("/object/upload/sign/%s/%s", s.bucket, path), struct{}{}, &out); err != nil {
		return "", fmt.Errorf("sign upload url: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("sign upload url: empty response")
	}
	return s.absolute(out.URL), nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, path string) error {
	if !ValidPath(path) {
		return ErrInvalidPath
	}
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)

	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("delete failed (%d)", resp.StatusCode)
	}
	return nil
}

func (s *SupabaseStorage) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The storage API reports a missing object as 400 with a "not_found"
	// error body on some versions and as 404 on others.
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound || bytes.Contains(bytes.ToLower(msg), []byte("not_found")) || bytes.Contains(bytes.ToLower(msg), []byte("not found")) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("storage request failed (%d): %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// absolute turns the bucket-relative paths the API returns into full URLs.
func (s *SupabaseStorage) absolute(p string) string {
	if strings.HasPrefix(p, "http") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return s.baseURL + p
}
