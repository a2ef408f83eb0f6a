package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnresolved means the bytes were uploaded but the server could not
// resolve the new handle to a URL. Nothing was committed.
var ErrUnresolved = errors.New("storygraph: uploaded file did not resolve")

// Uploaded describes a stored file ready to be attached to an entity.
type Uploaded struct {
	StorageID string
	URL       string
}

// CommitFunc attaches an uploaded file, typically by updating a frame,
// asset, project or profile with its storage id.
type CommitFunc func(ctx context.Context, f Uploaded) error

type Uploader struct {
	client *Client
	// http sends the raw PUT; upload URLs are pre-signed, so it carries no
	// session.
	http *http.Client
}

func NewUploader(c *Client) *Uploader {
	return &Uploader{client: c, http: c.httpClient}
}

// Upload runs the four-step flow: request an upload URL, PUT the bytes,
// resolve the new handle, then commit. commit is only called once every
// earlier step succeeded.
func (u *Uploader) Upload(ctx context.Context, body io.Reader, size int64, contentType string, commit CommitFunc) (*Uploaded, error) {
	target, err := u.client.GenerateUploadURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("request upload url: %w", err)
	}

	if err := u.put(ctx, target.UploadURL, body, size, contentType); err != nil {
		return nil, err
	}

	url, err := u.client.ResolveURL(ctx, target.StorageID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target.StorageID, err)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, target.StorageID)
	}

	f := Uploaded{StorageID: target.StorageID, URL: url}
	if commit != nil {
		if err := commit(ctx, f); err != nil {
			return nil, fmt.Errorf("commit upload: %w", err)
		}
	}
	return &f, nil
}

func (u *Uploader) put(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}
	return nil
}
