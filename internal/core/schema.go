package core

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/runbook.schema.json
var schemaFS embed.FS

const schemaPath = "schema/runbook.schema.json"

var loadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	src, err := schemaFS.ReadFile(schemaPath)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaPath, bytes.NewReader(src)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaPath)
})

// validateSchema checks a decoded YAML document against the embedded schema
// and reports the most specific failing location.
func validateSchema(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return newConfigError("", "", err)
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return newConfigError(strings.TrimPrefix(leaf.InstanceLocation, "/"), leaf.Message, nil)
}
