package doctree

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

const documentSchema = `{
  "type": "object",
  "required": ["sections"],
  "properties": {
    "schema_id": {"type": "string"},
    "meta": {
      "type": "object",
      "properties": {
        "source": {"type": "string"},
        "content_type": {"type": "string"},
        "title": {"type": "string"}
      }
    },
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["chunks"],
        "properties": {
          "heading": {"type": "string"},
          "chunks": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "text": {"type": "string"},
                "order": {"type": "integer"},
                "associated_images": {"type": "array", "items": {"type": "string"}}
              }
            }
          },
          "images": {"type": "array", "items": {"$ref": "#/$defs/image"}}
        }
      }
    },
    "images": {"type": "array", "items": {"$ref": "#/$defs/image"}}
  },
  "$defs": {
    "image": {
      "type": "object",
      "required": ["image_id"],
      "properties": {
        "image_id": {"type": "string"},
        "page_number": {"type": "integer"},
        "dimensions": {
          "type": "object",
          "required": ["width", "height"],
          "properties": {
            "width": {"type": "integer"},
            "height": {"type": "integer"}
          }
        },
        "associated_text": {"type": "string"}
      }
    }
  }
}`

var compiledDocumentSchema = jsonschema.MustCompileString("document.json", documentSchema)

// Decode reads a JSON document, validates its shape and returns it.
// Malformed input is reported as a configuration error.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Config("document is not valid JSON", err)
	}
	if err := compiledDocumentSchema.Validate(raw); err != nil {
		return nil, apperr.Config("document does not match schema", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Config("decode document", err)
	}
	if doc.SchemaID != "" && doc.SchemaID != SchemaID {
		return nil, apperr.Configf("unsupported schema %q, want %q", doc.SchemaID, SchemaID)
	}
	return &doc, nil
}
