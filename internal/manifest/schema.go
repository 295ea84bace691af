package manifest

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "srcpatch manifest",
  "type": "object",
  "additionalProperties": false,
  "required": ["patches"],
  "properties": {
    "work_dir": {
      "type": "string",
      "description": "Directory the patches are applied in."
    },
    "base_dir": {
      "type": "string",
      "description": "Directory relative patch paths are resolved against."
    },
    "patches": {
      "type": "array",
      "description": "Patch files applied in order.",
      "items": {
        "type": "string",
        "minLength": 1
      }
    }
  }
}`

var (
	schemaLoader     gojsonschema.JSONLoader
	schemaLoaderErr  error
	schemaLoaderOnce sync.Once
)

// Schema returns the manifest JSON schema as a generic map.
func Schema() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &out); err != nil {
		return nil, fmt.Errorf("manifest: decode schema: %w", err)
	}
	return out, nil
}

func loadSchema() (gojsonschema.JSONLoader, error) {
	schemaLoaderOnce.Do(func() {
		schemaMap, err := Schema()
		if err != nil {
			schemaLoaderErr = err
			return
		}
		schemaLoader = gojsonschema.NewGoLoader(schemaMap)
	})
	if schemaLoaderErr != nil {
		return nil, schemaLoaderErr
	}
	return schemaLoader, nil
}

func validate(data []byte) error {
	loader, err := loadSchema()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("manifest: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return &ValidationError{Issues: issues}
}
