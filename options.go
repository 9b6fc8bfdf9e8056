package meld

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMode sets the execution mode. Defaults to ModeBackend.
func WithMode(m Mode) Option {
	return func(d *Dispatcher) {
		d.mode = m
	}
}

// WithClientFactory sets the factory used in backend mode.
func WithClientFactory(f ClientFactory) Option {
	return func(d *Dispatcher) {
		d.strategies[ModeBackend] = NewBackendStrategy(f)
	}
}

// WithStore sets the object store used in local mode.
func WithStore(s ObjectStore) Option {
	return func(d *Dispatcher) {
		d.strategies[ModeLocal] = NewLocalStrategy(s)
	}
}

// WithStrategy registers a custom strategy for mode, replacing the default.
func WithStrategy(m Mode, s Strategy) Option {
	return func(d *Dispatcher) {
		d.strategies[m] = s
	}
}

// WithValidator replaces ValidatePath for destination and source checks.
func WithValidator(v PathValidator) Option {
	return func(d *Dispatcher) {
		d.validate = v
	}
}

// WithMaxComponents overrides MaxComponents. Values <= 0 are ignored.
func WithMaxComponents(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxComponents = n
		}
	}
}

// ComposeOption configures a single Compose call.
type ComposeOption func(*composeOptions)

type composeOptions struct {
	metadata    []Metadata
	contentType string
	retry       *RetryParams
	accountID   string
}

// WithMetadata supplies per-source metadata, paired by position.
// It may be shorter than the source list.
func WithMetadata(md ...Metadata) ComposeOption {
	return func(o *composeOptions) {
		o.metadata = md
	}
}

// WithContentType sets the destination object's content type.
func WithContentType(ct string) ComposeOption {
	return func(o *composeOptions) {
		o.contentType = ct
	}
}

// WithRetryParams passes retry parameters through to the ClientFactory.
func WithRetryParams(p RetryParams) ComposeOption {
	return func(o *composeOptions) {
		o.retry = &p
	}
}

// WithAccountID passes an account identity through to the ClientFactory.
func WithAccountID(id string) ComposeOption {
	return func(o *composeOptions) {
		o.accountID = id
	}
}
