// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry provides the model catalog: the fixed, ordered set of model
// descriptors a principal can ever be routed to. Catalog membership is the ground
// truth for what a model id means; every other component validates ids against it.
package registry

import (
	"fmt"
	"strings"

	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/sdk/access"
)

// Descriptor represents one selectable model.
type Descriptor struct {
	// ID is the unique identifier for the model
	ID string `yaml:"id" json:"id"`
	// Label is the human-readable name for the model
	Label string `yaml:"label" json:"label"`
	// Provider is the provider family (e.g., "claude", "mistral")
	Provider string `yaml:"provider" json:"provider"`
	// Icon is an optional asset path used by presentation adapters
	Icon string `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// Catalog is an immutable ordered registry of descriptors.
// Insertion order defines the default and tie-break order.
type Catalog struct {
	models    []Descriptor
	index     map[string]int
	defaultID string
}

// knownProviders lists the provider families the rest of the system can label.
var knownProviders = map[string]struct{}{
	constant.Claude:  {},
	constant.Mistral: {},
}

// IsKnownProvider reports whether provider is a supported family.
func IsKnownProvider(provider string) bool {
	_, ok := knownProviders[provider]
	return ok
}

// BuiltinModels returns the compiled-in catalog entries.
func BuiltinModels() []Descriptor {
	return []Descriptor{
		{
			ID:       "claude-3-5-sonnet",
			Label:    "Claude 3.5 Sonnet",
			Provider: constant.Claude,
			Icon:     "/assets/icons/claude.svg",
		},
		{
			ID:       "mistral-large-latest",
			Label:    "Mistral Large",
			Provider: constant.Mistral,
			Icon:     "/assets/icons/mistral.svg",
		},
	}
}

// Builtin returns the compiled-in catalog with constant.DefaultModelID as default.
func Builtin() *Catalog {
	c, err := New(BuiltinModels(), constant.DefaultModelID)
	if err != nil {
		// Compiled-in data is validated by tests.
		panic(fmt.Sprintf("registry: invalid builtin catalog: %v", err))
	}
	return c
}

// New validates models and builds a catalog.
// Parameters:
//   - models: ordered descriptors; ids must be unique and providers known
//   - defaultID: id of the system default entry; empty selects the first entry
func New(models []Descriptor, defaultID string) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one model")
	}

	c := &Catalog{
		models: make([]Descriptor, 0, len(models)),
		index:  make(map[string]int, len(models)),
	}
	for i, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		m.Label = strings.TrimSpace(m.Label)
		m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
		if m.ID == "" {
			return nil, fmt.Errorf("model #%d has an empty id", i)
		}
		if m.Label == "" {
			return nil, fmt.Errorf("model %s has an empty label", m.ID)
		}
		if !IsKnownProvider(m.Provider) {
			return nil, fmt.Errorf("model %s has unknown provider %q", m.ID, m.Provider)
		}
		if _, dup := c.index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		c.index[m.ID] = len(c.models)
		c.models = append(c.models, m)
	}

	defaultID = strings.TrimSpace(defaultID)
	if defaultID == "" {
		defaultID = c.models[0].ID
	}
	if _, ok := c.index[defaultID]; !ok {
		return nil, fmt.Errorf("default model %s is not in the catalog", defaultID)
	}
	c.defaultID = defaultID
	return c, nil
}

// All returns a copy of the ordered descriptors.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.models))
	copy(out, c.models)
	return out
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.models)
}

// ByID returns the descriptor for id.
func (c *Catalog) ByID(id string) (Descriptor, bool) {
	i, ok := c.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.models[i], true
}

// Lookup is ByID with an access.ErrUnknownModel error for missing ids.
func (c *Catalog) Lookup(id string) (Descriptor, error) {
	d, ok := c.ByID(id)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", access.ErrUnknownModel, id)
	}
	return d, nil
}

// Contains reports whether id is a catalog member.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Default returns the system default descriptor.
func (c *Catalog) Default() Descriptor {
	return c.models[c.index[c.defaultID]]
}

// ByProvider returns the entries of one provider family in catalog order.
func (c *Catalog) ByProvider(provider string) []Descriptor {
	provider = strings.ToLower(provider)
	out := make([]Descriptor, 0, len(c.models))
	for _, m := range c.models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}
