package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Managers is an ordered mapping of manager name to its configuration.
// Order follows the settings file so searches and listings run in the order
// the user wrote them.
type Managers struct {
	order  []string
	byName map[string]ManagerConfig
}

// Len returns the number of managers.
func (m Managers) Len() int {
	return len(m.order)
}

// Names returns manager names in configuration order.
func (m Managers) Names() []string {
	return append([]string(nil), m.order...)
}

// Get returns the configuration for name.
func (m Managers) Get(name string) (ManagerConfig, bool) {
	mc, ok := m.byName[name]
	return mc, ok
}

// Set adds or replaces a manager, keeping its original position.
func (m *Managers) Set(name string, mc ManagerConfig) {
	if m.byName == nil {
		m.byName = make(map[string]ManagerConfig)
	}
	if _, exists := m.byName[name]; !exists {
		m.order = append(m.order, name)
	}
	m.byName[name] = mc
}

// Remove deletes a manager.
func (m *Managers) Remove(name string) {
	if _, ok := m.byName[name]; !ok {
		return
	}
	delete(m.byName, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Keys whose
// values are not mappings are skipped, which lets a whole legacy settings
// document be decoded as Managers.
func (m *Managers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("cannot unmarshal %v into managers", node.Kind)
	}
	*m = Managers{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.MappingNode {
			continue
		}
		var mc ManagerConfig
		if err := value.Decode(&mc); err != nil {
			return fmt.Errorf("manager %q: %w", key.Value, err)
		}
		m.Set(key.Value, mc)
	}
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (m Managers) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range m.order {
		value := &yaml.Node{}
		if err := value.Encode(m.byName[name]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			value,
		)
	}
	return node, nil
}
