package meld

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zoobzio/capitan"
)

// Mode selects how a Dispatcher executes a compose.
type Mode int

const (
	// ModeBackend asks the storage service to compose natively.
	ModeBackend Mode = iota

	// ModeLocal concatenates source bytes into the destination through an ObjectStore.
	// Intended for local emulators that do not implement compose.
	ModeLocal
)

// String returns the configuration name of m.
func (m Mode) String() string {
	switch m {
	case ModeBackend:
		return "backend"
	case ModeLocal:
		return "local"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "backend" or "local", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backend", "":
		return ModeBackend, nil
	case "local":
		return ModeLocal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Request is a normalized compose request. It is built fresh per call and
// consumed by exactly one Strategy.
type Request struct {
	Destination string
	Bucket      string
	Entries     []Entry
	ContentType string
	Retry       *RetryParams
	AccountID   string
}

// Strategy executes a normalized compose request.
type Strategy interface {
	Compose(ctx context.Context, req *Request) error
}

// BackendStrategy delegates to a Client obtained from a ClientFactory.
type BackendStrategy struct {
	factory ClientFactory
}

// NewBackendStrategy creates a BackendStrategy using factory.
func NewBackendStrategy(factory ClientFactory) *BackendStrategy {
	return &BackendStrategy{factory: factory}
}

// Compose obtains a client for the request's retry parameters and account and
// asks it to compose. Emits ClientOutdated if the client reports an outdated protocol.
func (s *BackendStrategy) Compose(ctx context.Context, req *Request) error {
	if s.factory == nil {
		return ErrNoClient
	}
	client, err := s.factory.Client(ctx, req.Retry, req.AccountID)
	if err != nil {
		return err
	}
	if client == nil {
		return ErrNoClient
	}
	if vr, ok := client.(VersionReporter); ok && vr.Outdated() {
		capitan.Emit(ctx, ClientOutdated, FieldDestination.Field(req.Destination))
	}
	return client.Compose(ctx, req.Entries, req.Destination, req.ContentType)
}

// LocalStrategy composes by reading each source in order and appending its bytes
// to the destination. Sources are processed strictly sequentially.
//
// There is no rollback: if a source read fails part way, the destination is left
// holding whatever was written before the failure.
type LocalStrategy struct {
	store ObjectStore
}

// NewLocalStrategy creates a LocalStrategy over store.
func NewLocalStrategy(store ObjectStore) *LocalStrategy {
	return &LocalStrategy{store: store}
}

// Compose writes the concatenation of all entries to req.Destination.
func (s *LocalStrategy) Compose(ctx context.Context, req *Request) (err error) {
	if s.store == nil {
		return ErrNoStore
	}
	dst, err := s.store.Create(ctx, req.Destination, req.ContentType)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, dst.Close())
	}()

	for _, entry := range req.Entries {
		if err := appendObject(ctx, s.store, dst, req.Bucket+entry.Name); err != nil {
			return err
		}
	}
	return nil
}

func appendObject(ctx context.Context, store ObjectStore, dst io.Writer, path string) error {
	src, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("meld: append %s: %w", path, err)
	}
	return nil
}
