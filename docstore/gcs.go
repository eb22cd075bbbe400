package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores the document as one JSON object in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	logger *slog.Logger
	bucket string
	object string
}

// NewGCSClient creates a Cloud Storage client. Explicit credentials are
// optional; without them Application Default Credentials are used.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

// NewGCS creates a Cloud Storage backend for bucket/object.
func NewGCS(client *storage.Client, bucket, object string, logger *slog.Logger) *GCS {
	return &GCS{
		client: client,
		logger: logger,
		bucket: bucket,
		object: object,
	}
}

// Get reads the document. A missing object is an empty document.
func (g *GCS) Get(ctx context.Context) (Document, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			g.logger.Debug("Shared document object missing, treating as empty", "bucket", g.bucket, "object", g.object)
			return Document{}, nil
		}
		return nil, fmt.Errorf("open storage reader: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			g.logger.Warn("Failed to close storage reader", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read from storage: %w", err)
	}

	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return Document{}, nil
	}
	return doc, nil
}

// Put overwrites the object with doc.
func (g *GCS) Put(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, writeErr := w.Write(data); writeErr != nil {
		if closeErr := w.Close(); closeErr != nil {
			g.logger.Warn("Failed to close writer after error", "error", closeErr)
		}
		return fmt.Errorf("write to storage: %w", writeErr)
	}
	if closeErr := w.Close(); closeErr != nil {
		return fmt.Errorf("close storage writer: %w", closeErr)
	}
	return nil
}
