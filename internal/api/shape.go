package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBaseURL = "mem://fleetdash/"

//go:embed schemas/*.json
var schemaFS embed.FS

// Shapes of the documents exchanged with the backend. They are compiled once
// at package initialization; a broken embedded schema is a build defect.
var (
	RobotListShape    = mustLoadShape("robots.json")
	RobotDetailShape  = mustLoadShape("robot.json")
	RobotNetworkShape = mustLoadShape("robot_network.json")
	SetRobotNameShape = mustLoadShape("set_robot_name.json")
)

// Shape is a compiled JSON Schema describing one request or response body.
type Shape struct {
	name   string
	schema *jsonschema.Schema
}

// Name returns the schema file name the shape was compiled from.
func (s *Shape) Name() string {
	return s.name
}

// Check validates a decoded JSON document and returns the violated rules, or
// nil when the document conforms. Numbers should be decoded as json.Number.
func (s *Shape) Check(doc any) []string {
	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	violations := leafViolations(verr)
	sort.Strings(violations)
	return violations
}

// CheckBytes decodes raw JSON and validates it.
func (s *Shape) CheckBytes(raw []byte) []string {
	doc, err := decodeDocument(raw)
	if err != nil {
		return []string{"body is not valid JSON: " + err.Error()}
	}
	return s.Check(doc)
}

func leafViolations(e *jsonschema.ValidationError) []string {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + e.Message}
	}
	var out []string
	for _, cause := range e.Causes {
		out = append(out, leafViolations(cause)...)
	}
	return out
}

func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}

// newCompiler returns a compiler preloaded with every embedded schema so that
// relative $refs between them resolve without network access.
func newCompiler() (*jsonschema.Compiler, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", entry.Name(), err)
		}
	}
	return c, nil
}

func mustLoadShape(name string) *Shape {
	c, err := newCompiler()
	if err != nil {
		panic(err)
	}
	schema, err := c.Compile(schemaBaseURL + name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile schema %s: %v", name, err))
	}
	return &Shape{name: name, schema: schema}
}
