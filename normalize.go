package meld

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/zoobzio/capitan"
)

// Normalize validates a compose request and returns its ordered entries and bucket
// prefix, using ValidatePath. See NormalizeWith.
func Normalize(ctx context.Context, destination string, sources []string, metadata []Metadata, maxComponents int) ([]Entry, string, error) {
	return NormalizeWith(ctx, ValidatePath, destination, sources, metadata, maxComponents)
}

// NormalizeWith validates destination and every bucket-qualified source with validate,
// enforces the component limits and pairs sources with metadata by position.
// metadata may be shorter than sources; the remaining entries carry no metadata.
// maxComponents <= 0 selects MaxComponents.
//
// Source names starting with '/' or with the bucket prefix are accepted, but emit
// SourceLeadingSlash or SourceBucketPrefix respectively.
func NormalizeWith(ctx context.Context, validate PathValidator, destination string, sources []string, metadata []Metadata, maxComponents int) ([]Entry, string, error) {
	if validate == nil {
		validate = ValidatePath
	}
	if maxComponents <= 0 {
		maxComponents = MaxComponents
	}

	if err := validate(destination); err != nil {
		return nil, "", err
	}
	bucket, err := BucketOf(destination)
	if err != nil {
		return nil, "", err
	}

	n := len(sources)
	if n > maxComponents {
		return nil, "", fmt.Errorf("%w (%d); limit is (%d)", ErrTooManyComponents, n, maxComponents)
	}
	if n <= 1 {
		return nil, "", fmt.Errorf("%w; %d provided", ErrTooFewComponents, n)
	}
	if len(metadata) > n {
		return nil, "", fmt.Errorf("%w: %d metadata entries for %d files", ErrTooMuchMetadata, len(metadata), n)
	}

	entries := make([]Entry, 0, n)
	for _, p := range zipMetadata(sources, metadata) {
		if strings.HasPrefix(p.name, "/") {
			capitan.Emit(ctx, SourceLeadingSlash, FieldSource.Field(p.name), FieldBucket.Field(bucket))
		}
		if strings.HasPrefix(p.name, bucket) {
			capitan.Emit(ctx, SourceBucketPrefix, FieldSource.Field(p.name), FieldBucket.Field(bucket))
		}
		if err := validate(bucket + p.name); err != nil {
			return nil, "", err
		}
		entry := Entry{Name: p.name}
		if p.metadata != nil {
			entry.Metadata = maps.Clone(p.metadata)
		}
		entries = append(entries, entry)
	}
	return entries, bucket, nil
}

type sourcePair struct {
	name     string
	metadata Metadata
}

// zipMetadata pairs each source with the metadata at the same index.
// Positions past the end of metadata get nil. Never truncates sources.
func zipMetadata(sources []string, metadata []Metadata) []sourcePair {
	pairs := make([]sourcePair, len(sources))
	for i, name := range sources {
		pairs[i].name = name
		if i < len(metadata) {
			pairs[i].metadata = metadata[i]
		}
	}
	return pairs
}

// ParseSources converts a loosely-typed source list, such as one decoded from
// JSON or YAML, into names. A bare string is rejected with ErrSourcesNotList
// and a non-string item with ErrSourceNotString.
func ParseSources(v any) ([]string, error) {
	switch list := v.(type) {
	case string:
		return nil, ErrSourcesNotList
	case []string:
		return list, nil
	case []any:
		names := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T", ErrSourceNotString, i, item)
			}
			names[i] = s
		}
		return names, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrSourcesNotList, v)
	}
}

// ParseMetadata converts a loosely-typed metadata list into Metadata values.
// nil items mean no metadata for that position. Scalar values are formatted with %v;
// nested mappings and lists are rejected.
func ParseMetadata(v any) ([]Metadata, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]Metadata); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("meld: metadata must be a list, got %T", v)
	}
	out := make([]Metadata, len(list))
	for i, item := range list {
		switch m := item.(type) {
		case nil:
		case map[string]any:
			md := make(Metadata, len(m))
			for k, val := range m {
				switch val.(type) {
				case map[string]any, map[any]any, []any:
					return nil, fmt.Errorf("meld: metadata item %d key %q must be a scalar, got %T", i, k, val)
				}
				md[k] = fmt.Sprint(val)
			}
			out[i] = md
		case map[string]string:
			out[i] = maps.Clone(m)
		default:
			return nil, fmt.Errorf("meld: metadata item %d must be a mapping, got %T", i, item)
		}
	}
	return out, nil
}
