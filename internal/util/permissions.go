// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// AuditResult describes the permission state of one State Box entry.
type AuditResult struct {
	Path         string
	CurrentMode  os.FileMode
	RequiredMode os.FileMode
	WasCorrected bool
	Error        error
}

// AuditPermissions reports State Box entries whose mode differs from the required one
// without changing anything. Directories require 0700, preference documents and
// databases (.json, .db) require 0600.
func AuditPermissions(sb *StateBox) ([]AuditResult, error) {
	return walkPermissions(sb, false)
}

// HardenPermissions corrects State Box permissions in place. Individual failures
// are logged and reported; only a nil StateBox or a failed walk is an error.
// A missing root is not an error: nothing has been persisted yet.
func HardenPermissions(sb *StateBox) ([]AuditResult, error) {
	if sb != nil {
		if _, err := os.Stat(sb.RootPath()); os.IsNotExist(err) {
			log.Debugf("permission hardening: State Box root does not exist: %s", sb.RootPath())
			return nil, nil
		}
	}
	results, err := walkPermissions(sb, true)
	if err != nil {
		return results, err
	}

	corrected := 0
	for _, r := range results {
		if r.WasCorrected {
			corrected++
		}
	}
	if corrected > 0 {
		log.Infof("permission hardening: corrected %d file/directory permissions", corrected)
	}
	return results, nil
}

func walkPermissions(sb *StateBox, fix bool) ([]AuditResult, error) {
	if sb == nil {
		return nil, fmt.Errorf("StateBox cannot be nil")
	}

	var results []AuditResult
	err := filepath.Walk(sb.RootPath(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warnf("permission audit: failed to access %s: %v", path, err)
			results = append(results, AuditResult{Path: path, Error: err})
			return nil
		}

		var required os.FileMode
		switch {
		case info.IsDir():
			required = 0700
		case isSensitiveFile(path):
			required = 0600
		default:
			return nil
		}

		res := AuditResult{Path: path, CurrentMode: info.Mode().Perm(), RequiredMode: required}
		if res.CurrentMode != required && fix {
			if chmodErr := os.Chmod(path, required); chmodErr != nil {
				log.Warnf("permission hardening: failed to chmod %s from %04o to %04o: %v", path, res.CurrentMode, required, chmodErr)
				res.Error = chmodErr
			} else {
				res.WasCorrected = true
			}
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("failed to walk State Box directory: %w", err)
	}
	return results, nil
}

// isSensitiveFile reports whether path holds persisted state (.json or .db).
func isSensitiveFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".db" || ext == ".json"
}
