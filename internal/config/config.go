// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the modelgate server.
// It handles loading and parsing the YAML configuration file and exposes the
// server, persistence, catalog and policy settings.
package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/traylinx/modelgate/internal/policy"
	"github.com/traylinx/modelgate/internal/store"
	"github.com/traylinx/modelgate/internal/util"
)

// DefaultPort is the port the API server listens on when none is configured.
const DefaultPort = 8318

// DefaultPrincipal names the session when the config does not.
const DefaultPrincipal = "default"

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces.
	Host string `yaml:"host" json:"-"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxSizeMB is the rotation size of the log file. 0 means the default (10 MB).
	LogsMaxSizeMB int `yaml:"logs-max-size-mb" json:"logs-max-size-mb"`

	// StateDir overrides the State Box root (default ~/.modelgate).
	StateDir string `yaml:"state-dir" json:"state-dir"`

	// CatalogFile optionally points at a models.yaml replacing the built-in catalog.
	CatalogFile string `yaml:"catalog-file" json:"catalog-file"`

	// Principal identifies whose selection this server instance manages.
	Principal string `yaml:"principal" json:"principal"`

	// RemoteManagement guards the access-facts endpoint.
	RemoteManagement RemoteManagement `yaml:"remote-management" json:"-"`

	// WebsocketAuth requires the management key on the selection websocket.
	WebsocketAuth bool `yaml:"ws-auth" json:"ws-auth"`

	// Persistence selects the preference backend.
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`

	// Access is the initial access snapshot used until a collaborator pushes one.
	Access AccessConfig `yaml:"access" json:"access"`

	// Policy configures the lock role, restrictions and permission naming.
	Policy policy.Config `yaml:"policy" json:"policy"`
}

// RemoteManagement holds management API settings.
type RemoteManagement struct {
	// AllowRemote toggles remote (non-localhost) access to management endpoints.
	AllowRemote bool `yaml:"allow-remote"`
	// SecretKey is the management key (plaintext or bcrypt hashed). Plaintext is hashed on load.
	SecretKey string `yaml:"secret-key"`
}

// PersistenceConfig selects and configures the preference store.
type PersistenceConfig struct {
	// Backend is one of file, sqlite, postgres, memory.
	Backend string `yaml:"backend" json:"backend"`
	// DSN is the sqlite path or postgres connection string.
	DSN string `yaml:"dsn" json:"-"`
	// Table is the SQL table name.
	Table string `yaml:"table" json:"table"`
}

// AccessConfig is a static access snapshot.
type AccessConfig struct {
	Roles       []string `yaml:"roles" json:"roles"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

// StoreOptions converts the persistence block for store.Open.
func (cfg *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:   cfg.Persistence.Backend,
		DSN:       cfg.Persistence.DSN,
		Table:     cfg.Persistence.Table,
		Principal: cfg.Principal,
	}
}

// CatalogPath resolves CatalogFile relative to the directory of configPath.
// It returns "" when no catalog file is configured.
func (cfg *Config) CatalogPath(configPath string) string {
	if cfg.CatalogFile == "" {
		return ""
	}
	p, err := util.ExpandPath(cfg.CatalogFile)
	if err != nil {
		p = cfg.CatalogFile
	}
	if !filepath.IsAbs(p) && configPath != "" {
		p = filepath.Join(filepath.Dir(configPath), p)
	}
	return p
}

// Addr returns the listen address.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Default returns a configuration holding every default value.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Sanitize()
	return cfg
}

// applyDefaults sets defaults before unmarshal so that absent keys keep them.
func applyDefaults(cfg *Config) {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.Principal = DefaultPrincipal
	cfg.WebsocketAuth = false
	cfg.Persistence.Backend = store.BackendFile
	cfg.Persistence.Table = store.DefaultTable
	cfg.Policy = policy.DefaultConfig()
}

// LoadConfig reads YAML from configFile. A missing file is an error.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Hash the management key if plaintext is detected and persist the hash so
	// the plaintext does not stay on disk.
	if cfg.RemoteManagement.SecretKey != "" && !looksLikeBcrypt(cfg.RemoteManagement.SecretKey) {
		hashed, errHash := hashSecret(cfg.RemoteManagement.SecretKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash remote management key: %w", errHash)
		}
		cfg.RemoteManagement.SecretKey = hashed
		_ = SaveConfigPreserveCommentsUpdateNestedScalar(configFile, []string{"remote-management", "secret-key"}, hashed)
	}

	return cfg, nil
}

// Parse decodes YAML config data on top of the defaults and sanitizes it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	applyDefaults(&cfg)

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sanitize trims string fields and restores defaults for blank values.
func (cfg *Config) Sanitize() {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	cfg.Principal = strings.TrimSpace(cfg.Principal)
	if cfg.Principal == "" {
		cfg.Principal = DefaultPrincipal
	}
	if cfg.LogsMaxSizeMB < 0 {
		cfg.LogsMaxSizeMB = 0
	}
	cfg.StateDir = strings.TrimSpace(cfg.StateDir)
	cfg.CatalogFile = strings.TrimSpace(cfg.CatalogFile)
	cfg.RemoteManagement.SecretKey = strings.TrimSpace(cfg.RemoteManagement.SecretKey)

	cfg.Persistence.Backend = strings.ToLower(strings.TrimSpace(cfg.Persistence.Backend))
	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = store.BackendFile
	}
	cfg.Persistence.Table = strings.TrimSpace(cfg.Persistence.Table)
	if cfg.Persistence.Table == "" {
		cfg.Persistence.Table = store.DefaultTable
	}

	cfg.Access.Roles = normalizeList(cfg.Access.Roles)
	cfg.Access.Permissions = normalizeList(cfg.Access.Permissions)

	cfg.Policy.LockRole = strings.TrimSpace(cfg.Policy.LockRole)
	cfg.Policy.LockedProvider = strings.ToLower(strings.TrimSpace(cfg.Policy.LockedProvider))
	cfg.Policy.PermissionPrefix = strings.TrimSpace(cfg.Policy.PermissionPrefix)
	for i := range cfg.Policy.Restrictions {
		r := &cfg.Policy.Restrictions[i]
		r.Role = strings.TrimSpace(r.Role)
		r.Condition = strings.TrimSpace(r.Condition)
		for j, p := range r.Providers {
			r.Providers[j] = strings.ToLower(strings.TrimSpace(p))
		}
	}
}

// Validate reports configuration errors that cannot be defaulted away.
func (cfg *Config) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	switch cfg.Persistence.Backend {
	case store.BackendFile, store.BackendSQLite, store.BackendMemory:
	case store.BackendPostgres:
		if cfg.Persistence.DSN == "" {
			return fmt.Errorf("persistence backend postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
	return nil
}

// VerifyManagementKey reports whether key matches the configured management key.
// It is false when no key is configured.
func (cfg *Config) VerifyManagementKey(key string) bool {
	hash := cfg.RemoteManagement.SecretKey
	if hash == "" || key == "" {
		return false
	}
	if !looksLikeBcrypt(hash) {
		return subtle.ConstantTimeCompare([]byte(hash), []byte(key)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
