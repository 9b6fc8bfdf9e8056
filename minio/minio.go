// Package minio provides meld Client and ObjectStore implementations for MinIO.
//
// MinIO composes server-side through ComposeObject. Like S3 it requires every
// source except the last to be at least 5 MiB.
package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/zoobzio/meld"
	"github.com/zoobzio/meld/internal/shared"
)

// Metadata keys understood by Client. Other keys are ignored.
const (
	// MetaVersionID composes a specific version of the component.
	MetaVersionID = "VersionId"

	// MetaMatchETag makes the compose fail unless the component's ETag matches.
	MetaMatchETag = "MatchETag"
)

// Client implements meld.Client using MinIO ComposeObject.
type Client struct {
	client *minio.Client
}

// New creates a MinIO compose client.
func New(client *minio.Client) *Client {
	return &Client{client: client}
}

// Compose merges entries into destination with a single ComposeObject call.
func (c *Client) Compose(ctx context.Context, entries []meld.Entry, destination, contentType string) error {
	dst, srcs, err := composeOptions(entries, destination, contentType)
	if err != nil {
		return err
	}
	if _, err := c.client.ComposeObject(ctx, dst, srcs...); err != nil {
		return translate(err)
	}
	return nil
}

func composeOptions(entries []meld.Entry, destination, contentType string) (minio.CopyDestOptions, []minio.CopySrcOptions, error) {
	bucket, object, err := meld.SplitPath(destination)
	if err != nil {
		return minio.CopyDestOptions{}, nil, err
	}
	dst := minio.CopyDestOptions{
		Bucket: bucket,
		Object: object,
	}
	if contentType != "" {
		dst.UserMetadata = map[string]string{"Content-Type": contentType}
		dst.ReplaceMetadata = true
	}

	srcs := make([]minio.CopySrcOptions, 0, len(entries))
	for _, e := range entries {
		srcs = append(srcs, minio.CopySrcOptions{
			Bucket:    bucket,
			Object:    e.Name,
			VersionID: e.Metadata[MetaVersionID],
			MatchETag: e.Metadata[MetaMatchETag],
		})
	}
	return dst, srcs, nil
}

func translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %w", meld.ErrNotFound, err)
	}
	return err
}

// Store implements meld.ObjectStore over MinIO object reads and streamed puts.
type Store struct {
	client *minio.Client
}

// NewStore creates a MinIO object store.
func NewStore(client *minio.Client) *Store {
	return &Store{client: client}
}

// Open returns a reader for the object at path.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translate(err)
	}
	return obj, nil
}

// Create returns a writer streamed to MinIO. The put completes when the writer is closed.
func (s *Store) Create(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	bucket, object, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	opts := minio.PutObjectOptions{}
	if contentType != "" {
		opts.ContentType = contentType
	}
	return shared.StreamWriter(func(r io.Reader) error {
		_, err := s.client.PutObject(ctx, bucket, object, r, -1, opts)
		return err
	}), nil
}

var (
	_ meld.Client      = (*Client)(nil)
	_ meld.ObjectStore = (*Store)(nil)
)
