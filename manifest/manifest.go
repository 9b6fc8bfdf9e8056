// Package manifest decodes compose requests from JSON or YAML documents.
//
// Documents are decoded loosely and then type-checked, so a manifest whose file_list
// is a single string fails with meld.ErrSourcesNotList rather than a decoder error.
//
//	destination: /mybucket/out.txt
//	file_list: [part-1.txt, part-2.txt]
//	metadata_list:
//	  - {Generation: "1712"}
//	content_type: text/plain
package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/zoobzio/meld"
)

// ErrInvalidManifest indicates a document that is not a mapping or has a field of the wrong type.
var ErrInvalidManifest = errors.New("manifest: invalid document")

// Manifest is a decoded compose request.
type Manifest struct {
	Destination string
	Sources     []string
	Metadata    []meld.Metadata
	ContentType string
	AccountID   string
}

// Decode parses data with codec into a Manifest.
func Decode(data []byte, codec Codec) (*Manifest, error) {
	var doc map[string]any
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidManifest)
	}

	m := &Manifest{}
	var err error
	if m.Destination, err = stringField(doc, "destination"); err != nil {
		return nil, err
	}
	if m.ContentType, err = stringField(doc, "content_type"); err != nil {
		return nil, err
	}
	if m.AccountID, err = stringField(doc, "account_id"); err != nil {
		return nil, err
	}

	raw, ok := doc["file_list"]
	if !ok {
		return nil, fmt.Errorf("%w: file_list is required", ErrInvalidManifest)
	}
	if m.Sources, err = meld.ParseSources(raw); err != nil {
		return nil, err
	}
	if m.Metadata, err = meld.ParseMetadata(doc["metadata_list"]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return m, nil
}

// Load reads and decodes the manifest at name on fs, choosing the codec by extension.
func Load(fs billy.Basic, name string) (*Manifest, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	return Decode(data, CodecFor(name))
}

// Options returns the compose options carried by m.
func (m *Manifest) Options() []meld.ComposeOption {
	var opts []meld.ComposeOption
	if len(m.Metadata) > 0 {
		opts = append(opts, meld.WithMetadata(m.Metadata...))
	}
	if m.ContentType != "" {
		opts = append(opts, meld.WithContentType(m.ContentType))
	}
	if m.AccountID != "" {
		opts = append(opts, meld.WithAccountID(m.AccountID))
	}
	return opts
}

// Compose runs m through d.
func (m *Manifest) Compose(ctx context.Context, d *meld.Dispatcher, extra ...meld.ComposeOption) error {
	return d.Compose(ctx, m.Sources, m.Destination, append(m.Options(), extra...)...)
}

func stringField(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidManifest, key, v)
	}
	return s, nil
}
