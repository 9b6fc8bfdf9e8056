package manifest

import (
	"encoding/json"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec decodes manifest documents.
type Codec interface {
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// JSONCodec implements Codec using JSON encoding.
type JSONCodec struct{}

// Unmarshal deserializes JSON bytes into a value.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return "application/json"
}

// YAMLCodec implements Codec using YAML encoding.
type YAMLCodec struct{}

// Unmarshal deserializes YAML bytes into a value.
func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// ContentType returns the YAML MIME type.
func (YAMLCodec) ContentType() string {
	return "application/yaml"
}

// CodecFor picks a codec from a file extension. Anything other than .json is read as YAML,
// which also accepts JSON documents.
func CodecFor(name string) Codec {
	if strings.EqualFold(path.Ext(name), ".json") {
		return JSONCodec{}
	}
	return YAMLCodec{}
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)
