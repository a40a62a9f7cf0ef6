// Package schema checks command front-matter against the on-disk JSON schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	slasherrors "slashc/internal/errors"
	"slashc/pkg/command"
)

//go:embed command.schema.json
var defaultSchema []byte

// Default returns the bundled schema that `slashc init` installs.
func Default() []byte {
	return append([]byte(nil), defaultSchema...)
}

var slashNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "slashname", func(fl validator.FieldLevel) bool {
		return slashNamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "relpath", func(fl validator.FieldLevel) bool {
		return IsRelativeOutput(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// IsRelativeOutput reports whether p is a relative path that stays below its base.
func IsRelativeOutput(p string) bool {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	clean := filepath.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// Issue is a single schema failure at a JSON pointer location.
type Issue struct {
	Location string
	Message  string
}

func (i Issue) String() string {
	location := "#" + i.Location
	if i.Message == "" {
		return location
	}
	return fmt.Sprintf("%s: %s", location, i.Message)
}

// Schema is a compiled front-matter schema.
type Schema struct {
	path     string
	compiled *jsonschema.Schema
}

// Load reads and compiles the schema at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		cause := err.Error()
		if os.IsNotExist(err) {
			cause = "the schema file does not exist"
		}
		return nil, slasherrors.NewSlashError(slasherrors.ErrSchemaUnavailable,
			fmt.Sprintf("Schema file not found at %s", path),
			cause,
			"Run 'slashc init' to install the default schema or set schema_path",
			err)
	}

	s, err := Compile(path, data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded front-matter schema", "path", path)
	return s, nil
}

// Compile compiles schema JSON. name identifies it in diagnostics.
func Compile(name string, data []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := filepath.ToSlash(filepath.Base(name))
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, schemaUnavailable(name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, schemaUnavailable(name, err)
	}
	return &Schema{path: name, compiled: compiled}, nil
}

func schemaUnavailable(name string, err error) error {
	return slasherrors.NewSlashError(slasherrors.ErrSchemaUnavailable,
		fmt.Sprintf("Failed to compile schema %s", name),
		err.Error(),
		"Check that the schema is valid JSON Schema",
		err)
}

// Path is where the schema was loaded from.
func (s *Schema) Path() string {
	return s.path
}

// Validate checks doc's raw front-matter against the schema and, on success,
// fills the typed front-matter fields.
func (s *Schema) Validate(doc *command.Document) error {
	if err := s.ValidateMap(doc.Path, doc.FrontMatter.Raw); err != nil {
		return err
	}

	typed, err := decode(doc.FrontMatter.Raw)
	if err != nil {
		return slasherrors.NewSchemaError(
			fmt.Sprintf("Schema validation error in %s", doc.Path),
			err.Error(), "", err)
	}
	if err := validate.Struct(typed); err != nil {
		return slasherrors.NewSchemaError(
			fmt.Sprintf("Schema validation error in %s", doc.Path),
			formatFieldErrors(err),
			"slash must be a plain file name and outputs must be relative paths",
			err)
	}

	typed.Raw = doc.FrontMatter.Raw
	doc.FrontMatter = *typed
	return nil
}

// ValidateMap checks a raw front-matter mapping. path is used in diagnostics.
func (s *Schema) ValidateMap(path string, raw map[string]any) error {
	instance, err := toJSON(raw)
	if err != nil {
		return slasherrors.NewSchemaError(
			fmt.Sprintf("Schema validation error in %s", path),
			fmt.Sprintf("front-matter cannot be represented as JSON: %v", err),
			"Use only strings, numbers, booleans, lists and string-keyed mappings",
			err)
	}

	if err := s.compiled.Validate(instance); err != nil {
		issues := Issues(err)
		parts := make([]string, 0, len(issues))
		for _, issue := range issues {
			parts = append(parts, issue.String())
		}
		return slasherrors.NewSchemaError(
			fmt.Sprintf("Schema validation error in %s", path),
			strings.Join(parts, "; "),
			fmt.Sprintf("Front-matter must satisfy %s", s.path),
			err)
	}
	return nil
}

// Issues flattens a schema validation error into its leaf failures.
func Issues(err error) []Issue {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return []Issue{{Message: err.Error()}}
	}

	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(validationErr)
	return issues
}

// toJSON converts a YAML-decoded value into the shapes encoding/json produces,
// which is what the schema engine expects.
func toJSON(raw map[string]any) (any, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(raw map[string]any) (*command.FrontMatter, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var fm command.FrontMatter
	if err := json.Unmarshal(encoded, &fm); err != nil {
		return nil, fmt.Errorf("failed to decode front-matter: %w", err)
	}
	return &fm, nil
}

func formatFieldErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := strings.TrimPrefix(e.Namespace(), "FrontMatter.")
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("field '%s' is required but missing", field))
		case "slashname":
			messages = append(messages, fmt.Sprintf("field '%s' must be a plain name (letters, digits, '_', '.', '-'), got %q", field, e.Value()))
		case "relpath":
			messages = append(messages, fmt.Sprintf("field '%s' must be a relative path inside the workspace, got %q", field, e.Value()))
		default:
			messages = append(messages, fmt.Sprintf("field '%s' failed validation (%s)", field, e.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}
