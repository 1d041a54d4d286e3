// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/modelgate/sdk/access"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "claude-3-5-sonnet", all[0].ID)
	assert.Equal(t, "mistral-large-latest", all[1].ID)
	assert.Equal(t, "claude-3-5-sonnet", c.Default().ID)

	d, ok := c.ByID("mistral-large-latest")
	require.True(t, ok)
	assert.Equal(t, "Mistral Large", d.Label)
	assert.Equal(t, "mistral", d.Provider)

	_, ok = c.ByID("gpt-4o")
	assert.False(t, ok)
}

func TestAll_ReturnsCopy(t *testing.T) {
	c := Builtin()
	all := c.All()
	all[0].ID = "mutated"

	assert.Equal(t, "claude-3-5-sonnet", c.All()[0].ID)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Builtin().Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, access.ErrUnknownModel))
}

func TestByProvider(t *testing.T) {
	c, err := New([]Descriptor{
		{ID: "m-small", Label: "Mistral Small", Provider: "mistral"},
		{ID: "c-haiku", Label: "Claude Haiku", Provider: "claude"},
		{ID: "m-large", Label: "Mistral Large", Provider: "MISTRAL"},
	}, "c-haiku")
	require.NoError(t, err)

	got := c.ByProvider("mistral")
	require.Len(t, got, 2)
	assert.Equal(t, "m-small", got[0].ID)
	assert.Equal(t, "m-large", got[1].ID)
	assert.Empty(t, c.ByProvider("openai"))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		models    []Descriptor
		defaultID string
		wantErr   bool
	}{
		{name: "empty", models: nil, wantErr: true},
		{name: "empty id", models: []Descriptor{{Label: "x", Provider: "claude"}}, wantErr: true},
		{name: "empty label", models: []Descriptor{{ID: "x", Provider: "claude"}}, wantErr: true},
		{name: "unknown provider", models: []Descriptor{{ID: "x", Label: "X", Provider: "openai"}}, wantErr: true},
		{
			name:    "duplicate",
			models:  []Descriptor{{ID: "x", Label: "X", Provider: "claude"}, {ID: "x", Label: "Y", Provider: "mistral"}},
			wantErr: true,
		},
		{name: "missing default", models: []Descriptor{{ID: "x", Label: "X", Provider: "claude"}}, defaultID: "y", wantErr: true},
		{name: "default falls back to first", models: []Descriptor{{ID: "x", Label: "X", Provider: "claude"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.models, tt.defaultID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	c, err = Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	doc := `
default-model: mistral-small
models:
  - id: claude-3-5-sonnet
    label: Claude 3.5 Sonnet
    provider: claude
  - id: mistral-small
    label: Mistral Small
    provider: mistral
    icon: /assets/icons/mistral.svg
`
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral-small", c.Default().ID)
	d, ok := c.ByID("mistral-small")
	require.True(t, ok)
	assert.Equal(t, "/assets/icons/mistral.svg", d.Icon)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("models: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("models:\n  - id: a\n    label: A\n    provider: bard\n"))
	assert.Error(t, err)
}
