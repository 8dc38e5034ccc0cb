package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Shape schemas for the four upstream documents. They pin down the types the
// engine relies on and leave unknown properties alone.
var documentSchemas = map[string]string{
	TokensFile: `{
  "type": "object",
  "properties": {
    "tokens": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["token_id"],
        "properties": {
          "token_id": {"type": "integer"},
          "text": {"type": ["string", "null"]},
          "confidence": {"type": ["number", "null"]}
        }
      }
    }
  }
}`,
	TableFile: `{
  "type": "object",
  "properties": {
    "cells": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["row_index", "column_key"],
        "properties": {
          "row_index": {"type": "integer"},
          "column_key": {"type": "string"},
          "provenance": {
            "type": ["object", "null"],
            "properties": {
              "token_ids": {"type": ["array", "null"], "items": {"type": "integer"}}
            }
          }
        }
      }
    }
  }
}`,
	CandidatesFile: `{
  "type": "object",
  "properties": {
    "detectedType": {"type": ["string", "null"]},
    "candidates": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "recordType": {"type": ["string", "null"]},
          "confidence": {"type": ["number", "null"]},
          "fields": {"type": ["object", "null"]},
          "sourceRowIndex": {"type": ["integer", "null"]},
          "needsReview": {"type": ["boolean", "null"]}
        }
      }
    }
  }
}`,
	ProvenanceFile: `{
  "type": "object",
  "properties": {
    "fields": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["candidate_index", "field_name"],
        "properties": {
          "candidate_index": {"type": "integer"},
          "field_name": {"type": "string"},
          "provenance": {
            "type": ["object", "null"],
            "properties": {
              "token_ids": {"type": ["array", "null"], "items": {"type": "integer"}},
              "bbox_union": {
                "type": ["array", "null"],
                "items": {"type": "number"},
                "minItems": 4,
                "maxItems": 4
              },
              "confidence": {"type": ["number", "null"]}
            }
          }
        }
      }
    }
  }
}`,
}

// schemaSet holds the compiled document schemas keyed by file name
type schemaSet map[string]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	set := make(schemaSet, len(documentSchemas))
	for name, src := range documentSchemas {
		compiler := jsonschema.NewCompiler()
		url := name + ".schema.json"
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set[name] = schema
	}
	return set, nil
}

// validate checks a raw document against the schema for its file name
func (s schemaSet) validate(name string, data []byte) error {
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("no schema for %s", name)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
