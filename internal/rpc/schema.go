package rpc

import (
	"bytes"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// paramSchemas holds the raw JSON Schema documents for methods whose
// params are validated before dispatch, grounded on this codebase's other
// schema-compilation entry point (register each resource in memory, then
// compile by URL) rather than loading schema files from disk — the rpc
// package has no schema directory of its own.
var paramSchemas = map[string]string{
	"initialize": `{
		"type": "object",
		"properties": {
			"root_path": {"type": "string", "minLength": 1},
			"language_id": {"type": "string", "minLength": 1}
		},
		"required": ["root_path", "language_id"]
	}`,
	"sql": `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"parameters": {"type": "array"},
			"format": {"type": "string", "enum": ["text", "json"]}
		},
		"required": ["query"]
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemaFor(method string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for name, raw := range paramSchemas {
			url := "mem://rpc/" + name + ".schema.json"
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(url, doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiled = make(map[string]*jsonschema.Schema, len(paramSchemas))
		for name := range paramSchemas {
			s, err := c.Compile("mem://rpc/" + name + ".schema.json")
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return compiled[method], nil
}

// validateParams validates the decoded params document (as produced by
// jsonschema.UnmarshalJSON, not a Go struct) against method's schema, if
// one is registered. Methods with no registered schema are not validated.
func validateParams(method string, raw []byte) error {
	schema, err := schemaFor(method)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return schema.Validate(doc)
}
