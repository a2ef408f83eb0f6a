// Package client is a small Go client for the Storygraph HTTP API.
package client

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

// APIError is a failed API response, decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storygraph: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client for baseURL (for example https://api.example.com)
// acting with the given session token. An empty token makes anonymous
// requests.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends a JSON request to path (relative to /api/v1) and decodes the
// response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "INTERNAL", Message: strings.TrimSpace(string(data))}
	}
	return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
}

type UploadTarget struct {
	UploadURL string `json:"upload_url"`
	StorageID string `json:"storage_id"`
}

func (c *Client) GenerateUploadURL(ctx context.Context) (*UploadTarget, error) {
	var t UploadTarget
	if err := c.Do(ctx, http.MethodPost, "/storage/upload-url", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveURL returns the fetchable URL for a storage handle, or "" when it
// does not resolve.
func (c *Client) ResolveURL(ctx context.Context, storageID string) (string, error) {
	var out struct {
		URL *string `json:"url"`
	}
	if err := c.Do(ctx, http.MethodPost, "/storage/url", map[string]string{"storage_id": storageID}, &out); err != nil {
		return "", err
	}
	if out.URL == nil {
		return "", nil
	}
	return *out.URL, nil
}

func (c *Client) DeleteFile(ctx context.Context, storageID string) error {
	return c.Do(ctx, http.MethodDelete, "/storage/files/"+storageID, nil, nil)
}
