package roles

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Definition is the file form of a role declaration.
type Definition struct {
	Identifier  string `yaml:"identifier"`
	Name        string `yaml:"name"`
	Permissions Grants `yaml:"permissions"`
}

// Grants is a permission-name to default mapping that keeps the order of the YAML source.
type Grants []Grant

// UnmarshalYAML decodes a mapping node pair by pair so declaration order survives.
func (grants *Grants) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: permissions must be a mapping of name to default", node.Line)
	}

	result := make(Grants, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if valueNode.Kind == yaml.ScalarNode && valueNode.ShortTag() == "!!null" {
			return fmt.Errorf("line %d: permission %q needs a true or false default", keyNode.Line, keyNode.Value)
		}

		var granted bool
		if err := valueNode.Decode(&granted); err != nil {
			return fmt.Errorf("line %d: permission %q: %w", valueNode.Line, keyNode.Value, err)
		}
		result = append(result, Grant{Name: keyNode.Value, Default: granted})
	}

	*grants = result
	return nil
}

type definitionsFile struct {
	Roles []Definition `yaml:"roles"`
}

// Role builds the role described by the definition.
func (def Definition) Role() (*Role, error) {
	if def.Identifier == "" && def.Name == "" {
		return nil, fmt.Errorf("role definition needs an identifier or a name")
	}
	return NewRole(def.Identifier, WithName(def.Name), WithPermissions(def.Permissions...)), nil
}

// ParseDefinitions parses role definitions from YAML:
//
//	roles:
//	  - identifier: ContentEditor
//	    permissions:
//	      edit_post: true
//	      publish_post: false
func ParseDefinitions(data []byte) ([]*Role, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role definitions: %w", err)
	}

	roles := make([]*Role, 0, len(file.Roles))
	for i, def := range file.Roles {
		role, err := def.Role()
		if err != nil {
			return nil, fmt.Errorf("role definition %d: %w", i, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// LoadDefinitions reads and parses a role definitions file.
func LoadDefinitions(path string) ([]*Role, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read role definitions: %w", err)
	}
	return ParseDefinitions(data)
}
