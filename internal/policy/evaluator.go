// Package policy computes which catalog models a principal may select.
//
// Rule precedence is fixed: lock role, then role restrictions, then permission
// grants, then the default fallback. Evaluation is pure; identical facts always
// produce identical results.
package policy

import (
	"strings"

	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/internal/registry"
	"github.com/traylinx/modelgate/sdk/access"
)

type compiledRestriction struct {
	Restriction
	program   *vm.Program
	providers map[string]struct{}
}

// Evaluator maps access facts to a Result. It is safe for concurrent use
// (read-only after construction).
type Evaluator struct {
	catalog *registry.Catalog
	cfg     Config
	rules   []compiledRestriction
}

// NewEvaluator builds an evaluator over catalog. A zero cfg means DefaultConfig.
// Otherwise a blank LockedProvider, LockReason or PermissionPrefix takes its
// default, and an empty LockRole disables the lock. Restrictions with invalid
// conditions or no providers are logged and skipped.
func NewEvaluator(catalog *registry.Catalog, cfg Config) *Evaluator {
	def := DefaultConfig()
	if cfg.IsZero() {
		cfg = def
	}
	if strings.TrimSpace(cfg.LockedProvider) == "" {
		cfg.LockedProvider = def.LockedProvider
	}
	cfg.LockedProvider = strings.ToLower(strings.TrimSpace(cfg.LockedProvider))
	if cfg.LockReason == "" {
		cfg.LockReason = def.LockReason
	}
	if cfg.PermissionPrefix == "" {
		cfg.PermissionPrefix = def.PermissionPrefix
	}

	e := &Evaluator{catalog: catalog, cfg: cfg}
	for _, r := range cfg.Restrictions {
		name := r.Name
		if name == "" {
			name = r.Role
		}
		if len(r.Providers) == 0 {
			log.Warnf("policy: restriction %q lists no providers, skipping", name)
			continue
		}
		if r.Role == "" && r.Condition == "" {
			log.Warnf("policy: restriction %q has neither role nor condition, skipping", name)
			continue
		}
		cr := compiledRestriction{Restriction: r, providers: make(map[string]struct{}, len(r.Providers))}
		for _, p := range r.Providers {
			cr.providers[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
		}
		if r.Condition != "" {
			program, err := CompileCondition(r.Condition)
			if err != nil {
				log.Warnf("policy: restriction %q: %v", name, err)
				continue
			}
			cr.program = program
		}
		e.rules = append(e.rules, cr)
	}
	return e
}

// Catalog returns the catalog the evaluator filters.
func (e *Evaluator) Catalog() *registry.Catalog {
	return e.catalog
}

// Config returns the effective policy configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// PermissionFor returns the permission name guarding a provider family.
func (e *Evaluator) PermissionFor(provider string) string {
	return e.cfg.PermissionPrefix + provider
}

// PermissionFor returns the default permission name for provider ("model:claude").
func PermissionFor(provider string) string {
	return constant.PermissionPrefix + provider
}

// Evaluate computes the allowed models for facts. It never returns an empty
// allowed set and never fails: unknown roles or permissions mean "not granted".
func (e *Evaluator) Evaluate(facts access.Facts) Result {
	if e.cfg.LockRole != "" && facts.HasRole(e.cfg.LockRole) {
		return e.locked()
	}

	checker := access.PermissionChecker(access.PermissionFunc(facts.Has))
	if len(e.cfg.RoleGrants) > 0 {
		checker = access.AnyOf(checker, access.NewRoleGrants(facts.Roles, e.cfg.RoleGrants))
	}

	restrict := e.activeRestrictions(facts)

	allowed := make([]registry.Descriptor, 0, e.catalog.Len())
	for _, d := range e.catalog.All() {
		if !checker.Has(e.PermissionFor(d.Provider)) {
			continue
		}
		if !permittedBy(restrict, d.Provider) {
			continue
		}
		allowed = append(allowed, d)
	}

	if len(allowed) == 0 {
		allowed = append(allowed, e.catalog.Default())
	}
	return Result{Allowed: allowed}
}

func (e *Evaluator) locked() Result {
	allowed := e.catalog.ByProvider(e.cfg.LockedProvider)
	if len(allowed) == 0 {
		log.Warnf("policy: locked provider %q has no catalog entry, pinning to default model", e.cfg.LockedProvider)
		allowed = []registry.Descriptor{e.catalog.Default()}
	}
	return Result{
		Allowed:    allowed,
		Locked:     true,
		ForcedID:   allowed[0].ID,
		LockReason: e.cfg.LockReason,
	}
}

// activeRestrictions returns the restrictions that apply to facts.
func (e *Evaluator) activeRestrictions(facts access.Facts) []compiledRestriction {
	var active []compiledRestriction
	for _, r := range e.rules {
		if r.Role != "" && facts.HasRole(r.Role) {
			active = append(active, r)
			continue
		}
		if r.program == nil {
			continue
		}
		ok, err := RunCondition(r.program, facts)
		if err != nil {
			log.Warnf("policy: restriction %q: %v", r.Name, err)
			continue
		}
		if ok {
			active = append(active, r)
		}
	}
	return active
}

// permittedBy reports whether every active restriction admits provider.
func permittedBy(restrictions []compiledRestriction, provider string) bool {
	for _, r := range restrictions {
		if _, ok := r.providers[provider]; !ok {
			return false
		}
	}
	return true
}
