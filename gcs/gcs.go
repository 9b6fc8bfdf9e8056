// Package gcs provides meld Client and ObjectStore implementations for Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"github.com/zoobzio/meld"
)

// Metadata keys understood by Client. Other keys are ignored.
const (
	// MetaGeneration pins a component to a specific object generation.
	MetaGeneration = "Generation"

	// MetaIfGenerationMatch makes the compose fail unless the component's
	// live generation matches.
	MetaIfGenerationMatch = "IfGenerationMatch"
)

// Client implements meld.Client using the native GCS compose operation.
type Client struct {
	client *storage.Client
	retry  *meld.RetryParams
}

// New creates a GCS compose client using the storage client's retry settings.
func New(client *storage.Client) *Client {
	return &Client{client: client}
}

// Factory returns a meld.ClientFactory whose clients share client and apply the
// request's retry parameters to the destination handle. The account is ignored;
// credentials belong to client.
func Factory(client *storage.Client) meld.ClientFactory {
	return meld.ClientFactoryFunc(func(_ context.Context, retry *meld.RetryParams, _ string) (meld.Client, error) {
		return &Client{client: client, retry: retry}, nil
	})
}

// Compose merges entries into destination with a single ComposerFrom call.
func (c *Client) Compose(ctx context.Context, entries []meld.Entry, destination, contentType string) error {
	bucket, object, err := meld.SplitPath(destination)
	if err != nil {
		return err
	}
	bkt := c.client.Bucket(bucket)

	srcs := make([]*storage.ObjectHandle, 0, len(entries))
	for _, e := range entries {
		src, err := sourceHandle(bkt, e)
		if err != nil {
			return err
		}
		srcs = append(srcs, src)
	}

	dst := bkt.Object(object)
	if c.retry != nil {
		dst = dst.Retryer(retryOptions(c.retry)...)
		if c.retry.Deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.retry.Deadline)
			defer cancel()
		}
	}

	composer := dst.ComposerFrom(srcs...)
	if contentType != "" {
		composer.ContentType = contentType
	}
	if _, err := composer.Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %w", meld.ErrNotFound, err)
		}
		return err
	}
	return nil
}

// retryOptions maps RetryParams onto the storage retryer. Zero fields keep the
// library defaults. MinAttempts has no storage equivalent.
func retryOptions(p *meld.RetryParams) []storage.RetryOption {
	var opts []storage.RetryOption
	if p.InitialDelay > 0 || p.MaxDelay > 0 || p.BackoffFactor > 0 {
		opts = append(opts, storage.WithBackoff(gax.Backoff{
			Initial:    p.InitialDelay,
			Max:        p.MaxDelay,
			Multiplier: p.BackoffFactor,
		}))
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, storage.WithMaxAttempts(p.MaxAttempts))
	}
	return opts
}

func sourceHandle(bkt *storage.BucketHandle, e meld.Entry) (*storage.ObjectHandle, error) {
	obj := bkt.Object(e.Name)
	if raw, ok := e.Metadata[MetaGeneration]; ok {
		gen, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gcs: %s for %q: %w", MetaGeneration, e.Name, err)
		}
		obj = obj.Generation(gen)
	}
	if raw, ok := e.Metadata[MetaIfGenerationMatch]; ok {
		gen, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gcs: %s for %q: %w", MetaIfGenerationMatch, e.Name, err)
		}
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}
	return obj, nil
}

// Store implements meld.ObjectStore over GCS object readers and writers.
type Store struct {
	client *storage.Client
}

// NewStore creates a GCS object store.
func NewStore(client *storage.Client) *Store {
	return &Store{client: client}
}

// Open returns a reader for the object at path.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", meld.ErrNotFound, path)
		}
		return nil, err
	}
	return r, nil
}

// Create returns a writer that uploads the object at path on Close.
func (s *Store) Create(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	bucket, object, err := meld.SplitPath(path)
	if err != nil {
		return nil, err
	}
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	return w, nil
}

var (
	_ meld.Client      = (*Client)(nil)
	_ meld.ObjectStore = (*Store)(nil)
)
