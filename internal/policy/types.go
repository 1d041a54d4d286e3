package policy

import (
	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/internal/registry"
)

// Restriction narrows the permission-granted models to a set of provider families.
// It activates when the principal holds Role or when Condition evaluates to true.
type Restriction struct {
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Role      string   `yaml:"role,omitempty" json:"role,omitempty"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"` // Expression: "HasRole('CONTRACTOR') && !Has('model:mistral')"
	Providers []string `yaml:"providers" json:"providers"`
}

// Config holds the organization-level policy parameters.
type Config struct {
	LockRole         string              `yaml:"lock-role" json:"lock-role"`
	LockedProvider   string              `yaml:"locked-provider" json:"locked-provider"`
	LockReason       string              `yaml:"lock-reason" json:"lock-reason"`
	PermissionPrefix string              `yaml:"permission-prefix" json:"permission-prefix"`
	Restrictions     []Restriction       `yaml:"restrictions,omitempty" json:"restrictions,omitempty"`
	RoleGrants       map[string][]string `yaml:"role-grants,omitempty" json:"role-grants,omitempty"`
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		LockRole:         constant.LockRole,
		LockedProvider:   constant.LockedProvider,
		LockReason:       constant.DefaultLockReason,
		PermissionPrefix: constant.PermissionPrefix,
		Restrictions: []Restriction{
			{
				Name:      "claude-only",
				Role:      constant.ClaudeOnlyRole,
				Providers: []string{constant.Claude},
			},
		},
	}
}

// IsZero reports whether c is the zero Config, i.e. no policy was configured.
func (c Config) IsZero() bool {
	return c.LockRole == "" && c.LockedProvider == "" && c.LockReason == "" &&
		c.PermissionPrefix == "" && len(c.Restrictions) == 0 && len(c.RoleGrants) == 0
}

// Result is the output of one policy evaluation.
type Result struct {
	// Allowed is ordered by catalog order and never empty.
	Allowed []registry.Descriptor `json:"allowed"`
	// Locked removes user choice; ForcedID is set iff Locked.
	Locked     bool   `json:"locked"`
	ForcedID   string `json:"forced_id,omitempty"`
	LockReason string `json:"lock_reason,omitempty"`
}

// Contains reports whether id is in the allowed set.
func (r Result) Contains(id string) bool {
	for _, d := range r.Allowed {
		if d.ID == id {
			return true
		}
	}
	return false
}

// IDs returns the allowed ids in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Allowed))
	for i, d := range r.Allowed {
		ids[i] = d.ID
	}
	return ids
}

// Target is the id a reconciling store falls back to: ForcedID when locked,
// otherwise the first allowed entry.
func (r Result) Target() string {
	if r.Locked && r.ForcedID != "" {
		return r.ForcedID
	}
	if len(r.Allowed) == 0 {
		return ""
	}
	return r.Allowed[0].ID
}

// Equal reports whether two results describe the same policy outcome.
func (r Result) Equal(o Result) bool {
	if r.Locked != o.Locked || r.ForcedID != o.ForcedID || r.LockReason != o.LockReason {
		return false
	}
	if len(r.Allowed) != len(o.Allowed) {
		return false
	}
	for i := range r.Allowed {
		if r.Allowed[i] != o.Allowed[i] {
			return false
		}
	}
	return true
}
