package registry

import (
	"fmt"
	"strings"
)

// ConnectorRegistry is the central registry for all connectors.
type ConnectorRegistry struct {
	definitions map[string]ConnectorDefinition
	order       []string // Display order
}

// NewRegistry creates a new connector registry.
func NewRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		definitions: make(map[string]ConnectorDefinition),
		order:       make([]string, 0),
	}
}

// Register adds a connector definition to the registry.
func (r *ConnectorRegistry) Register(def ConnectorDefinition) error {
	kind := strings.ToLower(strings.TrimSpace(def.Kind()))
	if kind == "" {
		return fmt.Errorf("connector kind cannot be empty")
	}
	if _, exists := r.definitions[kind]; exists {
		return fmt.Errorf("connector kind %q already registered", kind)
	}
	r.definitions[kind] = def
	r.order = append(r.order, kind)
	return nil
}

// Get retrieves a connector definition by kind.
func (r *ConnectorRegistry) Get(kind string) (ConnectorDefinition, bool) {
	def, ok := r.definitions[strings.ToLower(strings.TrimSpace(kind))]
	return def, ok
}

// All returns all registered connector definitions in order.
func (r *ConnectorRegistry) All() []ConnectorDefinition {
	defs := make([]ConnectorDefinition, 0, len(r.order))
	for _, kind := range r.order {
		defs = append(defs, r.definitions[kind])
	}
	return defs
}

// Kinds returns the registered kinds in order.
func (r *ConnectorRegistry) Kinds() []string {
	return append([]string(nil), r.order...)
}

// States reports the configuration state of every connector.
func (r *ConnectorRegistry) States(deps Deps) []ConnectorState {
	states := make([]ConnectorState, 0, len(r.order))
	for _, kind := range r.order {
		def := r.definitions[kind]
		states = append(states, ConnectorState{
			Definition: def,
			Configured: def.IsConfigured(deps.Get(kind)),
		})
	}
	return states
}

// Select resolves the requested kinds. An empty request selects every configured connector.
func (r *ConnectorRegistry) Select(deps Deps, kinds []string) ([]ConnectorDefinition, error) {
	if len(kinds) == 0 {
		var out []ConnectorDefinition
		for _, s := range r.States(deps) {
			if s.Configured {
				out = append(out, s.Definition)
			}
		}
		return out, nil
	}
	out := make([]ConnectorDefinition, 0, len(kinds))
	for _, kind := range kinds {
		def, ok := r.Get(kind)
		if !ok {
			return nil, fmt.Errorf("unknown connector %q (known: %s)", kind, strings.Join(r.order, ", "))
		}
		out = append(out, def)
	}
	return out, nil
}

// ConnectorState represents the runtime state of a connector.
type ConnectorState struct {
	Definition ConnectorDefinition
	Configured bool
}

// StatusLabel returns the human-readable status label.
func (s ConnectorState) StatusLabel() string {
	if !s.Configured {
		return "Not configured"
	}
	return "Configured"
}
