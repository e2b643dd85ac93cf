// Package plan turns declarative plan documents into ready pipelines.
//
// A plan lists ops in execution order:
//
//	{"steps": [
//	  {"op": "codec.csv.decode"},
//	  {"op": "filter", "args": {"expr": "col('age') >= 18"}},
//	  {"op": "codec.jsonl.encode"}
//	]}
//
// The same document may be written in YAML. Exactly one decode op and one
// encode op are required; every other entry is a transform step.
package plan

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/strata/pkg/errors"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
)

// Document is a parsed plan.
type Document struct {
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Entry `json:"steps" yaml:"steps"`
}

// Entry names one op and its arguments.
type Entry struct {
	Op   string                 `json:"op" yaml:"op"`
	Args map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// Format is the encoding of a plan document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from a file extension. Anything that is not
// .yaml or .yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Parse decodes a plan document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = jsonpool.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid plan document")
	}
	return &doc, nil
}

// Load reads and parses a plan file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read plan "+path)
	}
	return Parse(data, FormatOf(path))
}
