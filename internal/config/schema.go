package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://imbridge.local/schema/config-v1.json"

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks the effective configuration, whatever format it
// was read from, against the embedded JSON schema.
func validateSchema(c *Config) ValidationErrors {
	schema, err := configSchema()
	if err != nil {
		return ValidationErrors{{Field: "$schema", Message: err.Error()}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "$", Message: err.Error()}}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationErrors{{Field: "$", Message: err.Error()}}
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationErrors{{Field: "$", Message: err.Error()}}
	}

	var errs ValidationErrors
	for _, unit := range verr.BasicOutput().Errors {
		if unit.Error == "" || strings.HasPrefix(unit.Error, "doesn't validate with") {
			continue
		}
		errs = append(errs, ValidationError{Field: pointerToField(unit.InstanceLocation), Message: unit.Error})
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{Field: pointerToField(verr.InstanceLocation), Message: verr.Message})
	}
	return errs
}

// pointerToField turns "/ibus/timeout_ms" into "ibus.timeout_ms" and
// "/hotkeys/0" into "hotkeys[0]".
func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "$"
	}
	var b strings.Builder
	for i, part := range strings.Split(ptr, "/") {
		switch {
		case part != "" && strings.Trim(part, "0123456789") == "":
			fmt.Fprintf(&b, "[%s]", part)
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}
