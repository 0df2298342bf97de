// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Rule predicate compilation.
 *
 * Predicates are CEL boolean expressions over dataset columns. The query
 * language itself is delegated to CEL; this package owns validation,
 * ordering, and conflict handling around it.
 *
 * Compilation workflow:
 *   1. Validate rule shape (target column, predicate length)
 *   2. Parse the predicate and extract referenced columns
 *   3. Reject references to columns absent from the dataset
 *   4. Compile against an environment declaring every current column
 *
 * Why check references before compiling: CEL reports undeclared idents
 * with positional diagnostics, but the engine contract is a typed
 * UnknownColumnError naming the column, so a predicate typo surfaces as
 * a hard per-rule failure instead of a silent no-match.
 *
 * Columns introduced by earlier rules in a chain are visible to later
 * rules because the orchestrator recompiles each rule against the
 * dataset's column set at the moment that rule executes.
 */

// CompiledRule is a predicate compiled against one dataset column set,
// ready for row evaluation.
type CompiledRule struct {
	Rule       types.Rule
	Referenced []string // columns the predicate reads, sorted

	prog cel.Program
}

// Compile validates a rule against the dataset's current columns and
// builds its evaluable predicate program.
func Compile(rule types.Rule, columns []string) (*CompiledRule, error) {
	if rule.TargetColumn == "" {
		return nil, types.ErrEmptyTargetColumn
	}
	if len(rule.Predicate) > types.MaxPredicateLength {
		return nil, types.ErrPredicateTooLong
	}

	refs, err := ReferencedColumns(rule.Predicate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPredicate, err)
	}

	colSet := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		colSet[c] = struct{}{}
	}
	for _, ref := range refs {
		if _, ok := colSet[ref]; !ok {
			return nil, &types.UnknownColumnError{Column: ref}
		}
	}

	// Declare every column as dyn: cell types are mixed and rows are
	// sparse, so static typing happens per value at evaluation time.
	// Columns whose names are not valid CEL identifiers cannot be
	// referenced by a predicate and are skipped.
	opts := make([]cel.EnvOption, 0, len(columns))
	for _, c := range columns {
		if isIdentifier(c) {
			opts = append(opts, cel.Variable(c, cel.DynType))
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create predicate environment: %w", err)
	}

	ast, iss := env.Compile(rule.Predicate)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPredicate, iss.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(types.PredicateCostLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPredicate, err)
	}

	return &CompiledRule{Rule: rule, Referenced: refs, prog: prog}, nil
}

// isIdentifier reports whether the column name is a legal CEL identifier.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
