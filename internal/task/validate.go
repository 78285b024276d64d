package task

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://stickyboard.local/schemas/"

const (
	listSchemaName   = "list.schema.json"
	createSchemaName = "create.schema.json"
)

var (
	schemaOnce    sync.Once
	listSchema    *jsonschema.Schema
	createSchema  *jsonschema.Schema
	schemaLoadErr error
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // path to the offending value, e.g. "[2].completed"
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateList checks a raw GET /tasks response body.
func ValidateList(data []byte) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	return validateJSON(listSchema, data)
}

// ValidateNew checks a task about to be sent as a create body.
func ValidateNew(t Task) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task for validation: %w", err)
	}
	return validateJSON(createSchema, data)
}

func loadSchemas() error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			schemaLoadErr = fmt.Errorf("read embedded schemas: %w", err)
			return
		}
		for _, entry := range entries {
			data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
			if err != nil {
				schemaLoadErr = fmt.Errorf("read schema %s: %w", entry.Name(), err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
				schemaLoadErr = fmt.Errorf("add schema %s: %w", entry.Name(), err)
				return
			}
		}

		if listSchema, err = compiler.Compile(schemaBaseURL + listSchemaName); err != nil {
			schemaLoadErr = fmt.Errorf("compile %s: %w", listSchemaName, err)
			return
		}
		if createSchema, err = compiler.Compile(schemaBaseURL + createSchemaName); err != nil {
			schemaLoadErr = fmt.Errorf("compile %s: %w", createSchemaName, err)
		}
	})
	return schemaLoadErr
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var errs []error
	collectSchemaErrors(&errs, ve)
	return errors.Join(errs...)
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  errors.New(err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// jsonPointerToPath turns "/2/completed" into "[2].completed".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
