package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traylinx/modelgate/internal/util"
)

// Permission status values reported by the State Box endpoint.
const (
	permissionOK      = "ok"
	permissionWarning = "warning"
	permissionError   = "error"
)

// StateBoxStatus describes where preferences are persisted and whether the
// persisted files are private.
type StateBoxStatus struct {
	RootPath         string           `json:"root_path"`
	ReadOnly         bool             `json:"read_only"`
	Initialized      bool             `json:"initialized"`
	Preferences      []PreferenceFile `json:"preferences"`
	PermissionStatus string           `json:"permission_status"`
	Warnings         []string         `json:"warnings,omitempty"`
	Errors           []string         `json:"errors,omitempty"`
}

// PreferenceFile is one persisted preference document or database.
type PreferenceFile struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Mode        string    `json:"mode"`
	ModTime     time.Time `json:"mod_time"`
	Quarantined bool      `json:"quarantined,omitempty"`
}

func (st *StateBoxStatus) warn(msg string) {
	st.Warnings = append(st.Warnings, msg)
	if st.PermissionStatus == permissionOK {
		st.PermissionStatus = permissionWarning
	}
}

func (st *StateBoxStatus) fail(msg string) {
	st.Errors = append(st.Errors, msg)
	st.PermissionStatus = permissionError
}

func isPreferenceFile(name string) bool {
	name = strings.TrimSuffix(name, ".corrupt")
	ext := filepath.Ext(name)
	return ext == ".json" || ext == ".db"
}

// StateBoxStatusHandler reports the State Box root, the persisted preference
// files and any entry whose mode is more permissive than required.
func StateBoxStatusHandler(sb *util.StateBox) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "State Box not initialized"})
			return
		}
		c.JSON(http.StatusOK, stateBoxStatus(sb))
	}
}

func stateBoxStatus(sb *util.StateBox) *StateBoxStatus {
	st := &StateBoxStatus{
		RootPath:         sb.RootPath(),
		ReadOnly:         sb.IsReadOnly(),
		Initialized:      true,
		Preferences:      []PreferenceFile{},
		PermissionStatus: permissionOK,
	}

	if _, err := os.Stat(st.RootPath); err != nil {
		if os.IsNotExist(err) {
			st.warn("State Box root directory does not exist")
		} else {
			st.fail("Failed to access State Box root directory")
		}
		return st
	}

	entries, _ := os.ReadDir(sb.PreferencesDir())
	for _, entry := range entries {
		if entry.IsDir() || !isPreferenceFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		pf := PreferenceFile{
			Name:        entry.Name(),
			Size:        info.Size(),
			Mode:        info.Mode().String(),
			ModTime:     info.ModTime(),
			Quarantined: strings.HasSuffix(entry.Name(), ".corrupt"),
		}
		if pf.Quarantined {
			st.warn(pf.Name + " is an unreadable document that was set aside")
		}
		st.Preferences = append(st.Preferences, pf)
	}

	findings, err := util.AuditPermissions(sb)
	if err != nil {
		st.fail(err.Error())
		return st
	}
	for _, f := range findings {
		switch {
		case f.Error != nil:
			st.fail(fmt.Sprintf("cannot inspect %s", f.Path))
		case f.CurrentMode&^f.RequiredMode != 0:
			rel, _ := filepath.Rel(st.RootPath, f.Path)
			st.warn(fmt.Sprintf("%s has overly permissive permissions (%04o, want %04o)", rel, f.CurrentMode, f.RequiredMode))
		}
	}
	return st
}
