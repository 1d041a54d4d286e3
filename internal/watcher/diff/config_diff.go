// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package diff summarizes configuration changes for hot-reload logging.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/traylinx/modelgate/internal/config"
	"github.com/traylinx/modelgate/internal/policy"
)

// ListSummary is an order-insensitive fingerprint of a string list.
type ListSummary struct {
	hash  string
	count int
}

// SummarizeList normalizes and hashes a list. Entries are trimmed and deduplicated.
func SummarizeList(list []string) ListSummary {
	if len(list) == 0 {
		return ListSummary{}
	}
	seen := make(map[string]struct{}, len(list))
	normalized := make([]string, 0, len(list))
	for _, entry := range list {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return ListSummary{hash: hex.EncodeToString(sum[:]), count: len(normalized)}
}

func restrictionKey(r policy.Restriction) string {
	providers := append([]string(nil), r.Providers...)
	sort.Strings(providers)
	return fmt.Sprintf("%s|%s|%s|%s", r.Name, r.Role, r.Condition, strings.Join(providers, ","))
}

func grantKeys(grants map[string][]string) []string {
	out := make([]string, 0, len(grants))
	for role, perms := range grants {
		sorted := append([]string(nil), perms...)
		sort.Strings(sorted)
		out = append(out, role+"="+strings.Join(sorted, ","))
	}
	return out
}

// Changed reports whether BuildConfigChangeDetails finds any difference.
func Changed(oldCfg, newCfg *config.Config) bool {
	return len(BuildConfigChangeDetails(oldCfg, newCfg)) > 0
}

// BuildConfigChangeDetails lists human-readable changes between two configs.
// Settings that only take effect on restart are suffixed with "(restart required)".
func BuildConfigChangeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var changes []string
	add := func(format string, args ...any) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}

	op, np := oldCfg.Policy, newCfg.Policy
	if op.LockRole != np.LockRole {
		add("policy.lock-role: %q -> %q", op.LockRole, np.LockRole)
	}
	if op.LockedProvider != np.LockedProvider {
		add("policy.locked-provider: %q -> %q", op.LockedProvider, np.LockedProvider)
	}
	if op.LockReason != np.LockReason {
		add("policy.lock-reason changed")
	}
	if op.PermissionPrefix != np.PermissionPrefix {
		add("policy.permission-prefix: %q -> %q", op.PermissionPrefix, np.PermissionPrefix)
	}

	oldRules := make([]string, len(op.Restrictions))
	for i, r := range op.Restrictions {
		oldRules[i] = restrictionKey(r)
	}
	newRules := make([]string, len(np.Restrictions))
	for i, r := range np.Restrictions {
		newRules[i] = restrictionKey(r)
	}
	if SummarizeList(oldRules) != SummarizeList(newRules) {
		add("policy.restrictions: %d -> %d entries", len(op.Restrictions), len(np.Restrictions))
	}
	if SummarizeList(grantKeys(op.RoleGrants)) != SummarizeList(grantKeys(np.RoleGrants)) {
		add("policy.role-grants: %d -> %d roles", len(op.RoleGrants), len(np.RoleGrants))
	}

	if oldCfg.CatalogFile != newCfg.CatalogFile {
		add("catalog-file: %q -> %q", oldCfg.CatalogFile, newCfg.CatalogFile)
	}
	if SummarizeList(oldCfg.Access.Roles) != SummarizeList(newCfg.Access.Roles) {
		add("access.roles: %d -> %d", len(oldCfg.Access.Roles), len(newCfg.Access.Roles))
	}
	if SummarizeList(oldCfg.Access.Permissions) != SummarizeList(newCfg.Access.Permissions) {
		add("access.permissions: %d -> %d", len(oldCfg.Access.Permissions), len(newCfg.Access.Permissions))
	}
	if oldCfg.Debug != newCfg.Debug {
		add("debug: %t -> %t", oldCfg.Debug, newCfg.Debug)
	}
	if oldCfg.RemoteManagement.AllowRemote != newCfg.RemoteManagement.AllowRemote {
		add("remote-management.allow-remote: %t -> %t", oldCfg.RemoteManagement.AllowRemote, newCfg.RemoteManagement.AllowRemote)
	}
	if oldCfg.RemoteManagement.SecretKey != newCfg.RemoteManagement.SecretKey {
		add("remote-management.secret-key changed")
	}
	if oldCfg.WebsocketAuth != newCfg.WebsocketAuth {
		add("ws-auth: %t -> %t", oldCfg.WebsocketAuth, newCfg.WebsocketAuth)
	}

	if oldCfg.Persistence.Backend != newCfg.Persistence.Backend || oldCfg.Persistence.DSN != newCfg.Persistence.DSN {
		add("persistence: %s -> %s (restart required)", oldCfg.Persistence.Backend, newCfg.Persistence.Backend)
	}
	if oldCfg.Principal != newCfg.Principal {
		add("principal: %q -> %q (restart required)", oldCfg.Principal, newCfg.Principal)
	}
	if oldCfg.StateDir != newCfg.StateDir || oldCfg.LoggingToFile != newCfg.LoggingToFile || oldCfg.LogsMaxSizeMB != newCfg.LogsMaxSizeMB {
		add("state-dir/logging (restart required)")
	}
	if oldCfg.Host != newCfg.Host || oldCfg.Port != newCfg.Port {
		add("listen address: %s -> %s (restart required)", oldCfg.Addr(), newCfg.Addr())
	}
	return changes
}
