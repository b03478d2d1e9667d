package catalog

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["symbol", "base_asset", "quote_asset"],
    "properties": {
      "symbol": {"type": "string", "minLength": 1},
      "base_asset": {"type": "string"},
      "quote_asset": {"type": "string"},
      "order_types": {
        "anyOf": [
          {"type": "null"},
          {"type": "array", "items": {"type": "string"}}
        ]
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("available_pairs.json", strings.NewReader(catalogSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("available_pairs.json")
}
