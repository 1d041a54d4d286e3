// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Host != "" {
		t.Errorf("Host should be empty by default (bind all), got: %s", cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Persistence.Backend != "file" {
		t.Errorf("Persistence.Backend = %q, want file", cfg.Persistence.Backend)
	}
	if cfg.Persistence.Table != "model_preferences" {
		t.Errorf("Persistence.Table = %q", cfg.Persistence.Table)
	}
	if cfg.Principal != DefaultPrincipal {
		t.Errorf("Principal = %q", cfg.Principal)
	}
	if cfg.Policy.LockRole != "MISTRAL_AD" || cfg.Policy.LockedProvider != "mistral" {
		t.Errorf("unexpected lock defaults: %+v", cfg.Policy)
	}
	if len(cfg.Policy.Restrictions) != 1 || cfg.Policy.Restrictions[0].Role != "CLAUDE_ONLY" {
		t.Errorf("expected the claude-only restriction by default, got %+v", cfg.Policy.Restrictions)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: 9000
principal: " alice "
persistence:
  backend: SQLite
access:
  roles: [USER, USER, " "]
  permissions: ["model:claude"]
policy:
  lock-role: ""
  permission-prefix: "llm."
  restrictions:
    - name: contractors
      condition: "HasRole('CONTRACTOR')"
      providers: [" Claude "]
  role-grants:
    ALL_MODELS: ["llm.claude", "llm.mistral"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Principal != "alice" {
		t.Errorf("Principal = %q", cfg.Principal)
	}
	if cfg.Persistence.Backend != "sqlite" {
		t.Errorf("Backend = %q", cfg.Persistence.Backend)
	}
	if len(cfg.Access.Roles) != 1 || cfg.Access.Roles[0] != "USER" {
		t.Errorf("Roles = %v", cfg.Access.Roles)
	}
	if cfg.Policy.LockRole != "" {
		t.Errorf("explicit empty lock-role should disable locking, got %q", cfg.Policy.LockRole)
	}
	if cfg.Policy.PermissionPrefix != "llm." {
		t.Errorf("PermissionPrefix = %q", cfg.Policy.PermissionPrefix)
	}
	if got := cfg.Policy.Restrictions[0].Providers[0]; got != "claude" {
		t.Errorf("provider not normalized: %q", got)
	}
	if len(cfg.Policy.RoleGrants["ALL_MODELS"]) != 2 {
		t.Errorf("RoleGrants = %v", cfg.Policy.RoleGrants)
	}

	opts := cfg.StoreOptions()
	if opts.Principal != "alice" || opts.Backend != "sqlite" {
		t.Errorf("StoreOptions = %+v", opts)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":          "port: [",
		"unknown backend":   "persistence:\n  backend: redis\n",
		"postgres no dsn":   "persistence:\n  backend: postgres\n",
		"port out of range": "port: 70000\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigOptional_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := LoadConfig(missing); err == nil {
		t.Error("LoadConfig should fail on a missing file")
	}
	cfg, err := LoadConfigOptional(missing, true)
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d", cfg.Port)
	}
}

func TestLoadConfig_HashesManagementKey(t *testing.T) {
	path := writeConfig(t, "# management\nremote-management:\n  secret-key: s3cret\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !looksLikeBcrypt(cfg.RemoteManagement.SecretKey) {
		t.Fatalf("secret key was not hashed: %q", cfg.RemoteManagement.SecretKey)
	}
	if !cfg.VerifyManagementKey("s3cret") {
		t.Error("VerifyManagementKey rejected the right key")
	}
	if cfg.VerifyManagementKey("wrong") || cfg.VerifyManagementKey("") {
		t.Error("VerifyManagementKey accepted a wrong key")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Error("plaintext key still on disk")
	}
	if !strings.Contains(string(data), "# management") {
		t.Error("comments were not preserved")
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.RemoteManagement.SecretKey != cfg.RemoteManagement.SecretKey {
		t.Error("hashed key was re-hashed on reload")
	}
}

func TestVerifyManagementKey_NotConfigured(t *testing.T) {
	if Default().VerifyManagementKey("anything") {
		t.Error("no key configured must reject every key")
	}
}

func TestVerifyManagementKey_Plaintext(t *testing.T) {
	cfg := Default()
	cfg.RemoteManagement.SecretKey = "env-key"

	cases := map[string]bool{
		"env-key":  true,
		"env-ke":   false,
		"env-key2": false,
		"ENV-KEY":  false,
		"":         false,
	}
	for key, want := range cases {
		if got := cfg.VerifyManagementKey(key); got != want {
			t.Errorf("VerifyManagementKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestSaveConfigPreserveCommentsUpdateNestedScalar(t *testing.T) {
	path := writeConfig(t, "port: 1\n")
	if err := SaveConfigPreserveCommentsUpdateNestedScalar(path, []string{"persistence", "backend"}, "memory"); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Persistence.Backend != "memory" || cfg.Port != 1 {
		t.Errorf("unexpected config after update: %+v", cfg)
	}
}

func TestCatalogPath(t *testing.T) {
	cfg := Default()
	if got := cfg.CatalogPath("/etc/modelgate/config.yaml"); got != "" {
		t.Errorf("expected empty catalog path, got %q", got)
	}

	cfg.CatalogFile = "models.yaml"
	if got := cfg.CatalogPath("/etc/modelgate/config.yaml"); got != filepath.Join("/etc/modelgate", "models.yaml") {
		t.Errorf("relative catalog path resolved to %q", got)
	}

	cfg.CatalogFile = "/srv/models.yaml"
	if got := cfg.CatalogPath("/etc/modelgate/config.yaml"); got != "/srv/models.yaml" {
		t.Errorf("absolute catalog path changed to %q", got)
	}
}
