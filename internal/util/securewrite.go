package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrReadOnlyMode is returned when a write is attempted on a read-only State Box.
var ErrReadOnlyMode = errors.New("read-only environment: write operations disabled")

// PrivateFileMode is the mode of every document written into the State Box.
const PrivateFileMode os.FileMode = 0o600

// WriteFileAtomic replaces path with data. The bytes go to a sibling temp file
// that is fsynced and renamed over the target, so readers never observe a torn
// document.
func WriteFileAtomic(sb *StateBox, path string, data []byte) error {
	if sb != nil && sb.IsReadOnly() {
		return ErrReadOnlyMode
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := path + ".tmp." + uuid.NewString()
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if d, err := os.Open(dir); err == nil {
		if errSync := d.Sync(); errSync != nil {
			log.Debugf("atomic write: directory sync failed for %s: %v", dir, errSync)
		}
		_ = d.Close()
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, PrivateFileMode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if errClose := f.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return nil
}

// WriteJSONAtomic encodes v as indented JSON and writes it with WriteFileAtomic.
func WriteJSONAtomic(sb *StateBox, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return WriteFileAtomic(sb, path, append(data, '\n'))
}

// Quarantine moves an unreadable document aside as <path>.corrupt so that it can
// be inspected after it has been replaced. A missing file is not an error.
func Quarantine(sb *StateBox, path string) (string, error) {
	if sb != nil && sb.IsReadOnly() {
		return "", ErrReadOnlyMode
	}
	target := path + ".corrupt"
	if err := os.Rename(path, target); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to quarantine %s: %w", path, err)
	}
	return target, nil
}
