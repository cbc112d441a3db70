package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// URIScheme prefixes every Cloud Storage object reference.
const URIScheme = "gs://"

// StorageService reads and writes ledger objects.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Fetch downloads the bytes of the object at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Upload writes data to the object at uri, replacing any existing object.
	Upload(ctx context.Context, uri, contentType string, data []byte) error
}

// Client is the Cloud Storage implementation of StorageService.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type Client struct {
	client        *storage.Client
	uploadTimeout time.Duration
}

// NewClient creates a storage-backed client.
func NewClient(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: client, uploadTimeout: 2 * time.Minute}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Fetch implements StorageService.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Upload implements StorageService.
func (c *Client) Upload(ctx context.Context, uri, contentType string, data []byte) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: writing object %s/%s: %w", bucket, object, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return nil
}

// ParseURI splits a gs://bucket/path/to/object URI into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, URIScheme) {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, URIScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the object's base name,
// e.g. "gs://bucket/folder/ledger.csv" -> "ledger.csv".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, URIScheme)

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// Ensure Client implements StorageService.
var _ StorageService = (*Client)(nil)
