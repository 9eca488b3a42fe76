package stage

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed stages.yaml
var defaultCatalogYAML []byte

// Definition describes one analysis stage.
type Definition struct {
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description"`
	KeyPoints         []string `yaml:"key_points" json:"keyPoints"`
	Questions         []string `yaml:"questions" json:"questions"`
	Examples          []string `yaml:"examples,omitempty" json:"examples,omitempty"`
	LegalReferences   []string `yaml:"legal_references,omitempty" json:"legalReferences,omitempty"`
	JurisdictionHints []string `yaml:"jurisdiction_hints,omitempty" json:"jurisdictionHints,omitempty"`
}

// Catalog is an ordered, immutable list of stage definitions.
type Catalog struct {
	stages []Definition
}

type catalogFile struct {
	Stages []Definition `yaml:"stages"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in twelve-stage catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		catalog, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("stage: embedded catalog invalid: %v", err))
		}
		defaultCatalog = catalog
	})
	return defaultCatalog
}

// Load reads a catalog from path, or returns the default catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage catalog: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("stage catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stage catalog: %w", err)
	}
	return New(file.Stages)
}

// New validates definitions and builds a catalog from them.
func New(definitions []Definition) (*Catalog, error) {
	if len(definitions) == 0 {
		return nil, errors.New("catalog has no stages")
	}
	seen := make(map[string]int, len(definitions))
	stages := make([]Definition, len(definitions))
	for i, def := range definitions {
		def.Name = strings.TrimSpace(def.Name)
		def.Description = strings.TrimSpace(def.Description)
		if def.Name == "" {
			return nil, fmt.Errorf("stage %d: name is required", i)
		}
		if prev, ok := seen[def.Name]; ok {
			return nil, fmt.Errorf("stage %d: name %q duplicates stage %d", i, def.Name, prev)
		}
		seen[def.Name] = i
		if def.Description == "" {
			def.Description = def.Name
		}
		stages[i] = def
	}
	return &Catalog{stages: stages}, nil
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stages)
}

// At returns the definition at index.
func (c *Catalog) At(index int) (Definition, bool) {
	if c == nil || index < 0 || index >= len(c.stages) {
		return Definition{}, false
	}
	return c.stages[index], true
}

// Index returns the position of the stage named name, or -1.
func (c *Catalog) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, def := range c.stages {
		if def.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the stage names in order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.stages))
	for i, def := range c.stages {
		names[i] = def.Name
	}
	return names
}

// All returns a copy of the definitions in order.
func (c *Catalog) All() []Definition {
	if c == nil {
		return nil
	}
	out := make([]Definition, len(c.stages))
	copy(out, c.stages)
	return out
}
