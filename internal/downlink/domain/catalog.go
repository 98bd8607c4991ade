package downlink

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed commands.yaml
var defaultCommandsYAML []byte

// Catalog is the immutable set of configuration commands.
type Catalog struct {
	commands []Command
	byKey    map[string]int
}

type catalogFile struct {
	Commands []commandYAML `yaml:"commands"`
}

type commandYAML struct {
	Key         string      `yaml:"key"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	HexTemplate string      `yaml:"hex_template"`
	FPort       int         `yaml:"f_port"`
	Fields      []fieldYAML `yaml:"fields"`
}

type fieldYAML struct {
	Name           string `yaml:"name"`
	Label          string `yaml:"label"`
	Encoding       string `yaml:"encoding"`
	Default        any    `yaml:"default"`
	Unit           string `yaml:"unit"`
	InputTransform string `yaml:"inputTransform"`
	Hidden         bool   `yaml:"hidden"`
}

// NewCatalog validates commands and builds a catalog.
func NewCatalog(commands ...Command) (*Catalog, error) {
	catalog := &Catalog{byKey: make(map[string]int, len(commands))}
	for _, cmd := range commands {
		if err := cmd.Validate(); err != nil {
			return nil, err
		}
		if _, ok := catalog.byKey[cmd.Key]; ok {
			return nil, fmt.Errorf("%w: duplicate command %s", ErrInvalidCatalog, cmd.Key)
		}
		catalog.commands = append(catalog.commands, cmd)
	}
	sort.Slice(catalog.commands, func(i, j int) bool {
		return catalog.commands[i].Key < catalog.commands[j].Key
	})
	for i, cmd := range catalog.commands {
		catalog.byKey[cmd.Key] = i
	}
	return catalog, nil
}

// LoadCatalog parses a YAML command catalog. Unknown encodings or transforms
// fail the load.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("downlink: decode catalog: %w", err)
	}
	commands := make([]Command, 0, len(file.Commands))
	for _, raw := range file.Commands {
		cmd := Command{
			Key:         raw.Key,
			Name:        raw.Name,
			Description: raw.Description,
			HexTemplate: raw.HexTemplate,
			FPort:       raw.FPort,
		}
		if cmd.FPort == 0 {
			cmd.FPort = DefaultFPort
		}
		for _, f := range raw.Fields {
			enc, err := ParseEncoding(f.Encoding)
			if err != nil {
				return nil, fmt.Errorf("command %s field %s: %w", raw.Key, f.Name, err)
			}
			transform, err := ParseTransform(f.InputTransform)
			if err != nil {
				return nil, fmt.Errorf("command %s field %s: %w", raw.Key, f.Name, err)
			}
			cmd.Fields = append(cmd.Fields, Field{
				Name:           f.Name,
				Label:          f.Label,
				Encoding:       enc,
				Default:        normalizeDefault(f.Default),
				Unit:           f.Unit,
				InputTransform: transform,
				Hidden:         f.Hidden,
			})
		}
		commands = append(commands, cmd)
	}
	return NewCatalog(commands...)
}

// DefaultCatalog returns the built-in command catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCommandsYAML)
}

// Lookup finds a command by key.
func (c *Catalog) Lookup(key string) (Command, error) {
	if c != nil {
		if i, ok := c.byKey[key]; ok {
			return c.commands[i], nil
		}
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, key)
}

// Commands returns all commands ordered by key.
func (c *Catalog) Commands() []Command {
	if c == nil {
		return nil
	}
	return append([]Command(nil), c.commands...)
}

// yaml.v3 decodes integers as int; keep numeric defaults as float64 like JSON input.
func normalizeDefault(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return value
}
