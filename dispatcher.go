package meld

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
)

// Dispatcher validates compose requests and runs them with the strategy for
// its configured mode. It holds no per-request state and is safe for concurrent use
// as long as its strategies are.
type Dispatcher struct {
	mode          Mode
	strategies    map[Mode]Strategy
	validate      PathValidator
	maxComponents int
}

// New creates a Dispatcher. Without options it runs in backend mode and fails
// every compose with ErrNoClient; supply WithClientFactory or WithStore.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mode:          ModeBackend,
		strategies:    make(map[Mode]Strategy, 2),
		validate:      ValidatePath,
		maxComponents: MaxComponents,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.validate == nil {
		d.validate = ValidatePath
	}
	return d
}

// Mode returns the configured execution mode.
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Compose merges sources, in order, into destination.
// sources are object names without the bucket; destination is /bucket/object.
// The request is fully validated before any client or store is touched.
func (d *Dispatcher) Compose(ctx context.Context, sources []string, destination string, opts ...ComposeOption) error {
	var o composeOptions
	for _, opt := range opts {
		opt(&o)
	}

	entries, bucket, err := NormalizeWith(ctx, d.validate, destination, sources, o.metadata, d.maxComponents)
	if err != nil {
		return err
	}

	strategy, err := d.strategy()
	if err != nil {
		return err
	}

	req := &Request{
		Destination: destination,
		Bucket:      bucket,
		Entries:     entries,
		ContentType: o.contentType,
		Retry:       o.retry,
		AccountID:   o.accountID,
	}

	start := time.Now()
	capitan.Emit(ctx, ComposeStarted,
		FieldDestination.Field(destination),
		FieldComponents.Field(len(entries)),
		FieldMode.Field(d.mode.String()),
	)

	if err := strategy.Compose(ctx, req); err != nil {
		capitan.Emit(ctx, ComposeFailed,
			FieldDestination.Field(destination),
			FieldMode.Field(d.mode.String()),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return err
	}

	capitan.Emit(ctx, ComposeCompleted,
		FieldDestination.Field(destination),
		FieldComponents.Field(len(entries)),
		FieldMode.Field(d.mode.String()),
		FieldDuration.Field(time.Since(start)),
	)
	return nil
}

func (d *Dispatcher) strategy() (Strategy, error) {
	s, ok := d.strategies[d.mode]
	if ok && s != nil {
		return s, nil
	}
	switch d.mode {
	case ModeBackend:
		return nil, ErrNoClient
	case ModeLocal:
		return nil, ErrNoStore
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, d.mode)
	}
}

// Exists reports whether the object at path can be opened for reading.
// ErrNotFound yields false; any other error is returned.
func Exists(ctx context.Context, store ObjectStore, path string) (bool, error) {
	r, err := store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = r.Close()
	return true, nil
}
