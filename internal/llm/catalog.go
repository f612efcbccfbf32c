package llm

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plan-chat-backend/internal/models"
)

//go:embed models.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Models     []models.ModelInfo `yaml:"models"`
	ModelNames map[string]string  `yaml:"model_names"`
}

// Catalog is the immutable list of models offered to callers plus the map
// from model id to the backend's own model name.
type Catalog struct {
	models       []models.ModelInfo
	index        map[string]int
	backendNames map[string]string
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a YAML catalog from path, or the embedded default when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	return NewCatalog(f.Models, f.ModelNames)
}

func NewCatalog(entries []models.ModelInfo, backendNames map[string]string) (*Catalog, error) {
	c := &Catalog{
		models:       make([]models.ModelInfo, 0, len(entries)),
		index:        make(map[string]int, len(entries)),
		backendNames: make(map[string]string, len(backendNames)),
	}

	for _, m := range entries {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model catalog entry %q is missing an id or provider", m.Name)
		}
		if _, dup := c.index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q in catalog", m.ID)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		c.index[m.ID] = len(c.models)
		c.models = append(c.models, m)
	}

	for id, name := range backendNames {
		c.backendNames[id] = name
	}

	return c, nil
}

// Models returns the catalog entries in declaration order.
func (c *Catalog) Models() []models.ModelInfo {
	out := make([]models.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID
	}
	return ids
}

func (c *Catalog) Lookup(id string) (models.ModelInfo, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.ModelInfo{}, false
	}
	return c.models[i], true
}

func (c *Catalog) IsValid(id string) bool {
	_, ok := c.index[id]
	return ok
}

// BackendName maps a model id to the name the backend expects.
func (c *Catalog) BackendName(id string) string {
	if name, ok := c.backendNames[id]; ok && name != "" {
		return name
	}
	return id
}

// Restrict returns a catalog holding only entries whose provider is in
// providers, and the ids that were dropped.
func (c *Catalog) Restrict(providers []string) (*Catalog, []string) {
	allowed := make(map[string]bool, len(providers))
	for _, p := range providers {
		allowed[p] = true
	}

	var kept []models.ModelInfo
	var dropped []string
	for _, m := range c.models {
		if allowed[m.Provider] {
			kept = append(kept, m)
		} else {
			dropped = append(dropped, m.ID)
		}
	}

	restricted, _ := NewCatalog(kept, c.backendNames)
	return restricted, dropped
}
