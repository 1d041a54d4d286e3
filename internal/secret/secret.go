// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package secret resolves credentials that deployments keep out of config.yaml.
package secret

import (
	"os"
	"strings"
)

// Lookup returns the first non-blank value among the given environment variables.
func Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not present.
func GetEnv(key, fallback string) string {
	if value, ok := Lookup(key); ok {
		return value
	}
	return fallback
}

// PersistenceDSN is the Postgres DSN for the preference store.
func PersistenceDSN() (string, bool) {
	return Lookup("MODELGATE_PERSISTENCE_DSN", "PGSTORE_DSN")
}

// ManagementKey is the secret protecting the management endpoints.
func ManagementKey() (string, bool) {
	return Lookup("MODELGATE_MANAGEMENT_KEY", "MANAGEMENT_PASSWORD")
}
