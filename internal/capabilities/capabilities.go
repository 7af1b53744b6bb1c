// Package capabilities loads the known_agent_roles / known_tools_by_role
// registry the Plan Manager validates plans against, from a JSON
// capabilities file.
package capabilities

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Role is one agent role and the tools it exposes.
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools"`
}

// Registry is the parsed capabilities file: the set of known roles and,
// derived from it, the knownAgentRoles/knownToolsByRole maps the Plan
// Manager and Plan Executor consult.
type Registry struct {
	SourcePath string
	roles      map[string]*Role
	order      []string
}

// New builds an empty registry, useful for tests that construct roles
// programmatically instead of loading a file.
func New() *Registry {
	return &Registry{roles: make(map[string]*Role)}
}

// Load reads and parses a JSON capabilities file of the shape
// {"roles": [{"name":..., "tools": [...]}]}.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capabilities: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes raw JSON bytes into a Registry without touching the
// filesystem, used by both Load and tests.
func Parse(data []byte, sourcePath string) (*Registry, error) {
	var doc struct {
		Roles []Role `json:"roles"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("capabilities: parse %s: %w", sourcePath, err)
	}
	reg := &Registry{SourcePath: sourcePath, roles: make(map[string]*Role, len(doc.Roles))}
	for i := range doc.Roles {
		r := doc.Roles[i]
		if r.Name == "" {
			return nil, fmt.Errorf("capabilities: role at index %d has an empty name", i)
		}
		reg.roles[r.Name] = &r
		reg.order = append(reg.order, r.Name)
	}
	return reg, nil
}

// Add registers a role programmatically; used by tests and by the default
// in-memory capability sets a caller might build without a file.
func (r *Registry) Add(role Role) {
	if _, exists := r.roles[role.Name]; !exists {
		r.order = append(r.order, role.Name)
	}
	r.roles[role.Name] = &role
}

// KnownAgentRoles returns every registered role name, in file order.
func (r *Registry) KnownAgentRoles() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// KnownToolsByRole returns the role→tools map the Plan Manager's Validate
// pass expects.
func (r *Registry) KnownToolsByRole() map[string][]string {
	out := make(map[string][]string, len(r.roles))
	for name, role := range r.roles {
		out[name] = role.Tools
	}
	return out
}

// HasRole reports whether a role is registered.
func (r *Registry) HasRole(name string) bool {
	_, ok := r.roles[name]
	return ok
}

// CapabilitiesSchema is the JSON Schema a capabilities file must satisfy,
// used by the `taskgraph validate` command.
const CapabilitiesSchema = `{
  "type": "object",
  "required": ["roles"],
  "properties": {
    "roles": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "tools"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "tools": {"type": "array", "items": {"type": "string", "minLength": 1}}
        }
      }
    }
  }
}`

var compiledCapabilitiesSchema = mustCompile(CapabilitiesSchema)

func mustCompile(schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("capabilities: invalid embedded schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("capabilities-schema.json", doc); err != nil {
		panic(fmt.Sprintf("capabilities: add schema resource: %v", err))
	}
	schema, err := c.Compile("capabilities-schema.json")
	if err != nil {
		panic(fmt.Sprintf("capabilities: compile schema: %v", err))
	}
	return schema
}

// Validate checks raw capabilities JSON against CapabilitiesSchema, used by
// `taskgraph validate` before attempting to Parse it.
func Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("capabilities: invalid JSON: %w", err)
	}
	return compiledCapabilitiesSchema.Validate(doc)
}
