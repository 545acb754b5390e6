// Package archive stores raw fetched listing pages for replay and
// debugging.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// GCS writes raw pages into a Google Cloud Storage bucket under
// <prefix>/<site>/<hash>.html.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS-backed archive.
func NewGCS(client *storage.Client, bucket, prefix string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if prefix == "" {
		prefix = "raw"
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads one page body keyed by site and content hash. Re-uploads
// of the same key overwrite in place.
func (g *GCS) Put(ctx context.Context, site, hash string, body []byte) error {
	if site == "" || hash == "" {
		return fmt.Errorf("site and hash are required")
	}
	object := path.Join(g.prefix, site, hash+".html")
	writer := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
