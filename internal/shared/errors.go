// Package shared contains canonical type definitions shared across meld.
package shared //nolint:revive // internal shared package is intentional

import "errors"

// Semantic errors for compose operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("meld: object not found")

	// ErrInvalidPath indicates a destination or source path is malformed.
	ErrInvalidPath = errors.New("meld: invalid path")

	// ErrTooManyComponents indicates the source list exceeds the component limit.
	ErrTooManyComponents = errors.New("meld: too many components")

	// ErrTooFewComponents indicates fewer than two sources were supplied.
	ErrTooFewComponents = errors.New("meld: at least two components required")

	// ErrTooMuchMetadata indicates more metadata entries than sources.
	ErrTooMuchMetadata = errors.New("meld: metadata exceeds file list length")

	// ErrSourcesNotList indicates the source list was not a sequence.
	ErrSourcesNotList = errors.New("meld: file_list must be a list")

	// ErrSourceNotString indicates a source list item was not a string.
	ErrSourceNotString = errors.New("meld: each source name must be a string")

	// ErrUnknownMode indicates an unrecognised execution mode.
	ErrUnknownMode = errors.New("meld: unknown mode")

	// ErrNoClient indicates backend mode was selected without a client factory.
	ErrNoClient = errors.New("meld: no backend client configured")

	// ErrNoStore indicates local mode was selected without an object store.
	ErrNoStore = errors.New("meld: no object store configured")
)
