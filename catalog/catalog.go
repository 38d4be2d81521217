package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"sigs.k8s.io/yaml"
)

// CharacterID identifies a character definition. The session host treats it as opaque.
type CharacterID string

// Definition describes the entity template spawned for a character.
type Definition struct {
	ID     CharacterID `json:"id"`
	Name   string      `json:"name,omitempty"`
	Prefab string      `json:"prefab"`
}

// Catalog resolves character ids to spawn definitions.
type Catalog interface {
	Lookup(id CharacterID) (Definition, bool)
}

// file is the on-disk layout of a catalog file.
type file struct {
	Characters []Definition `json:"characters"`
}

// Memory is an in-memory Catalog.
type Memory struct {
	mu   sync.RWMutex
	defs map[CharacterID]Definition
}

var _ Catalog = (*Memory)(nil)

// NewMemory creates a catalog holding defs. Later definitions replace earlier ones with the same id.
func NewMemory(defs ...Definition) *Memory {
	m := &Memory{defs: make(map[CharacterID]Definition, len(defs))}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

// Parse reads a YAML (or JSON) catalog document:
//
//	characters:
//	  - id: dino
//	    name: Dino
//	    prefab: DinoPlayer
func Parse(data []byte) (*Memory, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("[catalog.Parse] %w", err)
	}
	for i, d := range f.Characters {
		if d.ID == "" {
			return nil, fmt.Errorf("[catalog.Parse] character %d has no id", i)
		}
		if d.Prefab == "" {
			return nil, fmt.Errorf("[catalog.Parse] character %q has no prefab", d.ID)
		}
	}
	return NewMemory(f.Characters...), nil
}

// LoadFile parses the catalog stored at path.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[catalog.LoadFile] %w", err)
	}
	return Parse(data)
}

func (m *Memory) Lookup(id CharacterID) (Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.defs[id]
	return d, ok
}

// Put adds or replaces a definition.
func (m *Memory) Put(d Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.defs[d.ID] = d
}

// List returns all definitions ordered by id.
func (m *Memory) List() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]Definition, 0, len(m.defs))
	for _, d := range m.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}
