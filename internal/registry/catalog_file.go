// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// maxCatalogFileSize guards against oversized catalog documents.
const maxCatalogFileSize = 1 * 1024 * 1024

// catalogFile is the on-disk catalog document.
type catalogFile struct {
	DefaultModel string       `yaml:"default-model"`
	Models       []Descriptor `yaml:"models"`
}

// Load reads a catalog document from path.
// An empty path or a missing file yields the builtin catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("catalog file %s not found, using builtin catalog", path)
			return Builtin(), nil
		}
		return nil, fmt.Errorf("failed to stat catalog file: %w", err)
	}
	if info.Size() > maxCatalogFileSize {
		return nil, fmt.Errorf("catalog file %s is too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c, err := New(doc.Models, doc.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	log.Debugf("Loaded catalog with %d models (default %s)", c.Len(), c.Default().ID)
	return c, nil
}
