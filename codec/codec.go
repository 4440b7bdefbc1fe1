// Package codec encodes the JSON documents the tool reads and writes:
// partition hierarchies and run reports.
package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes documents. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	MarshalIndent(v any, prefix, indent string) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used for every document written to an output directory.
var Default Codec = GoJSON{}

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

func (GoJSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

func (GoJSON) Name() string { return "go-json" }

// StdJSON is backed by encoding/json. Tests use it to check that documents
// written with Default decode identically with the standard library.
type StdJSON struct{}

func (StdJSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (StdJSON) MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

func (StdJSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (StdJSON) Name() string { return "json" }

// Document renders v as a two-space indented document ending in a newline,
// the layout used for files meant to be read by people.
func Document(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	b, err := c.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
