package classification

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var defaultSchemasYAML []byte

// Registry is an immutable set of schema definitions ordered by payload type.
type Registry struct {
	schemas []SchemaDefinition
}

type registryFile struct {
	Schemas []SchemaDefinition `yaml:"schemas"`
}

// NewRegistry validates definitions and builds a registry.
func NewRegistry(defs ...SchemaDefinition) (*Registry, error) {
	schemas := make([]SchemaDefinition, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[def.PayloadType]; ok {
			return nil, fmt.Errorf("%w: duplicate payload type %s", ErrInvalidSchema, def.PayloadType)
		}
		seen[def.PayloadType] = struct{}{}
		schemas = append(schemas, cloneSchema(def))
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].PayloadType < schemas[j].PayloadType
	})
	return &Registry{schemas: schemas}, nil
}

// LoadRegistry parses a YAML schema catalog.
func LoadRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("classification: decode schemas: %w", err)
	}
	return NewRegistry(file.Schemas...)
}

// DefaultRegistry returns the built-in schema catalog.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultSchemasYAML)
}

// Schemas returns a copy of the registered schemas.
func (r *Registry) Schemas() []SchemaDefinition {
	if r == nil {
		return nil
	}
	out := make([]SchemaDefinition, 0, len(r.schemas))
	for _, schema := range r.schemas {
		out = append(out, cloneSchema(schema))
	}
	return out
}

// Lookup finds a schema by payload type.
func (r *Registry) Lookup(payloadType string) (SchemaDefinition, bool) {
	if r == nil {
		return SchemaDefinition{}, false
	}
	for _, schema := range r.schemas {
		if schema.PayloadType == payloadType {
			return cloneSchema(schema), true
		}
	}
	return SchemaDefinition{}, false
}

func cloneSchema(s SchemaDefinition) SchemaDefinition {
	s.RequiredFields = append([]string(nil), s.RequiredFields...)
	s.OptionalFields = append([]string(nil), s.OptionalFields...)
	s.Capabilities = append([]string(nil), s.Capabilities...)
	return s
}
