package story

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a chapter document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseChapter decodes a single chapter document. Decoding is strict: unknown
// fields are rejected so authoring typos surface at load time instead of
// silently dropping content. A missing choices list is treated as empty;
// missing kind, title or description is an error.
func ParseChapter(id string, data []byte, format Format) (*Chapter, error) {
	var c Chapter

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("chapter %q: %w", id, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("chapter %q: %w", id, err)
		}
	default:
		return nil, fmt.Errorf("chapter %q: unsupported format %q", id, format)
	}

	c.ID = id
	if c.Choices == nil {
		c.Choices = []Choice{}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
