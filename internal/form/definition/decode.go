package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// Format is the encoding of a definition document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported definition file extension %q", filepath.Ext(path))
	}
}

// Decode parses and normalizes a definition document.
func Decode(data []byte, format Format) (*model.FormDefinition, error) {
	doc, err := DecodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return Normalize(doc)
}

// DecodeDocument parses a document without normalizing it.
func DecodeDocument(data []byte, format Format) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, Errors{{Code: ErrCodeEmptyForm, Message: "form definition is empty"}}
	}
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, Errors{{Code: ErrCodeDecode, Message: fmt.Sprintf("failed to decode JSON definition: %v", err)}}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, Errors{{Code: ErrCodeDecode, Message: fmt.Sprintf("failed to decode YAML definition: %v", err)}}
		}
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}
	return &doc, nil
}

// DecodeJSON is Decode for JSON documents.
func DecodeJSON(data []byte) (*model.FormDefinition, error) {
	return Decode(data, FormatJSON)
}

// DecodeYAML is Decode for YAML documents.
func DecodeYAML(data []byte) (*model.FormDefinition, error) {
	return Decode(data, FormatYAML)
}
