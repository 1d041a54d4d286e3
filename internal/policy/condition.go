package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/traylinx/modelgate/sdk/access"
)

// ConditionEnv is the environment restriction conditions are evaluated against.
// Conditions may read Roles and call HasRole / Has.
type ConditionEnv struct {
	Roles []string

	facts access.Facts
}

// NewConditionEnv wraps facts for condition evaluation.
func NewConditionEnv(facts access.Facts) ConditionEnv {
	return ConditionEnv{Roles: facts.Roles, facts: facts}
}

// HasRole reports whether the principal holds role.
func (e ConditionEnv) HasRole(role string) bool {
	return e.facts.HasRole(role)
}

// Has reports whether the principal holds permission.
func (e ConditionEnv) Has(permission string) bool {
	return e.facts.Has(permission)
}

// CompileCondition compiles a restriction condition into a boolean program.
func CompileCondition(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition, expr.Env(ConditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile condition '%s': %w", condition, err)
	}
	return program, nil
}

// RunCondition evaluates a compiled condition against facts.
func RunCondition(program *vm.Program, facts access.Facts) (bool, error) {
	output, err := expr.Run(program, NewConditionEnv(facts))
	if err != nil {
		return false, fmt.Errorf("failed to run condition: %w", err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return a boolean")
	}
	return result, nil
}
