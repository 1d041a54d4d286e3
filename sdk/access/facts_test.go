// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet("model:claude", " ", "model:mistral ")

	assert.True(t, set.Has("model:claude"))
	assert.True(t, set.Has("model:mistral"))
	assert.False(t, set.Has(""))
	assert.Equal(t, []string{"model:claude", "model:mistral"}, set.List())
}

func TestPermissionFunc_Nil(t *testing.T) {
	var f PermissionFunc
	assert.False(t, f.Has("model:claude"))
}

func TestRoleGrants(t *testing.T) {
	grants := map[string][]string{
		"ALL_MODELS": {"model:claude", "model:mistral"},
		"READER":     {"docs:read"},
	}

	g := NewRoleGrants([]string{"READER", "ALL_MODELS"}, grants)
	assert.True(t, g.Has("model:mistral"))
	assert.True(t, g.Has("docs:read"))

	none := NewRoleGrants([]string{"GUEST"}, grants)
	assert.False(t, none.Has("model:claude"))
}

func TestAnyOf(t *testing.T) {
	checker := AnyOf(nil, NewPermissionSet("a"), PermissionFunc(func(p string) bool { return p == "b" }))

	assert.True(t, checker.Has("a"))
	assert.True(t, checker.Has("b"))
	assert.False(t, checker.Has("c"))
}

func TestFacts(t *testing.T) {
	facts := Facts{Roles: []string{"MISTRAL_AD"}}

	assert.True(t, facts.HasRole("MISTRAL_AD"))
	assert.False(t, facts.HasRole(""))
	assert.False(t, facts.HasRole("mistral_ad"))
	assert.False(t, facts.Has("model:claude"), "nil checker grants nothing")
}
