// Package meld validates and dispatches compose requests against object storage.
// A compose merges between two and MaxComponents stored objects, in order, into a
// single destination object. The merge itself is performed by a backend client or,
// in local mode, by byte concatenation through an ObjectStore.
package meld

import (
	"context"
	"io"
	"time"

	"github.com/zoobzio/meld/internal/shared"
)

// MaxComponents is the default per-call component limit enforced by the storage service.
const MaxComponents = 32

// Semantic errors for compose operations (re-exported from internal/shared).
var (
	ErrNotFound          = shared.ErrNotFound
	ErrInvalidPath       = shared.ErrInvalidPath
	ErrTooManyComponents = shared.ErrTooManyComponents
	ErrTooFewComponents  = shared.ErrTooFewComponents
	ErrTooMuchMetadata   = shared.ErrTooMuchMetadata
	ErrSourcesNotList    = shared.ErrSourcesNotList
	ErrSourceNotString   = shared.ErrSourceNotString
	ErrUnknownMode       = shared.ErrUnknownMode
	ErrNoClient          = shared.ErrNoClient
	ErrNoStore           = shared.ErrNoStore
)

// Entry is re-exported from internal/shared for the public API.
type Entry = shared.Entry

// Metadata holds caller-supplied per-component attributes.
// Keys are opaque to meld; provider clients interpret the ones they understand.
type Metadata = map[string]string

// Client performs a native compose on the storage service.
// Implementations (gcs, s3, minio, azure) satisfy this interface.
type Client interface {
	// Compose merges entries, in order, into destination.
	// destination is a full /bucket/object path; entry names exclude the bucket.
	// An empty contentType leaves the service default in place.
	Compose(ctx context.Context, entries []Entry, destination, contentType string) error
}

// VersionReporter is implemented by clients that can tell whether they speak an
// outdated protocol revision. Reporting true never blocks a compose.
type VersionReporter interface {
	Outdated() bool
}

// RetryParams is passed through unchanged to a ClientFactory.
// meld does not interpret these values.
type RetryParams struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	MinAttempts   int
	MaxAttempts   int
	Deadline      time.Duration
}

// ClientFactory obtains a Client for a single compose call.
type ClientFactory interface {
	// Client returns a client configured with the given retry parameters and account.
	// A nil retry means the factory's defaults. An empty accountID means the default account.
	Client(ctx context.Context, retry *RetryParams, accountID string) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, retry *RetryParams, accountID string) (Client, error)

// Client calls f.
func (f ClientFactoryFunc) Client(ctx context.Context, retry *RetryParams, accountID string) (Client, error) {
	return f(ctx, retry, accountID)
}

// StaticClient returns a ClientFactory that always yields c, ignoring retry and account.
func StaticClient(c Client) ClientFactory {
	return ClientFactoryFunc(func(context.Context, *RetryParams, string) (Client, error) {
		return c, nil
	})
}

// ObjectStore provides scoped read and write access to objects by /bucket/object path.
// Implementations (billy, gcs, s3, minio, azure) satisfy this interface.
type ObjectStore interface {
	// Open returns a reader for the object at path.
	// Returns an error wrapping ErrNotFound if the object does not exist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create returns a writer that replaces the object at path.
	// The object is committed when the writer is closed.
	Create(ctx context.Context, path, contentType string) (io.WriteCloser, error)
}
