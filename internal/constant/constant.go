// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package constant defines provider family identifiers and the fixed names shared
// between the catalog, the policy evaluator and request tagging.
package constant

const (
	// Claude represents the Anthropic Claude provider family.
	Claude = "claude"

	// Mistral represents the Mistral provider family.
	Mistral = "mistral"

	// ClaudeLabel is the request-tagging label for the Claude family.
	ClaudeLabel = "Claude"

	// MistralLabel is the request-tagging label for the Mistral family.
	MistralLabel = "Mistral"

	// DefaultModelID is the catalog entry used when policy grants nothing.
	DefaultModelID = "claude-3-5-sonnet"

	// PermissionPrefix prefixes a provider family to form its permission name ("model:claude").
	PermissionPrefix = "model:"

	// LockRole pins the principal to LockedProvider and disables user choice.
	LockRole = "MISTRAL_AD"

	// LockedProvider is the family a LockRole principal is restricted to.
	LockedProvider = Mistral

	// ClaudeOnlyRole restricts the principal to the Claude family.
	ClaudeOnlyRole = "CLAUDE_ONLY"

	// SelectionKey is the persistence slot holding the last selected model id.
	SelectionKey = "model.selected"

	// ModelTypeField is the payload field and query parameter stamped on outgoing requests.
	ModelTypeField = "modelType"

	// ModelTypeHeader echoes the stamped model type on tagging responses.
	ModelTypeHeader = "X-Model-Type"

	// DefaultLockReason is shown by presentation adapters when selection is locked.
	DefaultLockReason = "Your organisation restricts model changes (MISTRAL AD)."
)
