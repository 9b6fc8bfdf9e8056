// Package shared provides canonical type definitions used across meld modules.
package shared //nolint:revive // internal shared package is intentional

// Entry is one source object contributing to a composite.
// Name excludes the bucket. Metadata is nil when the caller supplied none.
type Entry struct {
	Name     string            `json:"Name" yaml:"name"`
	Metadata map[string]string `json:"Metadata,omitempty" yaml:"metadata,omitempty"`
}
