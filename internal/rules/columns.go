// internal/rules/columns.go
package rules

import (
	"sort"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

/*
 * Referenced-column extraction.
 *
 * Walks a parsed (unchecked) predicate AST and collects every free
 * identifier, which for flat tabular predicates is exactly the set of
 * columns the predicate reads. Comprehension loop variables are bound,
 * not free, and are excluded.
 *
 * Parse-only on purpose: extraction must work before the dataset's
 * column set is known, so the expression cannot be type-checked yet.
 */

// ReferencedColumns returns the sorted set of free identifiers in the
// predicate expression. A parse failure is returned verbatim; the caller
// wraps it as an invalid-predicate error.
func ReferencedColumns(expr string) ([]string, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, err
	}

	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	collectIdents(parsed.GetExpr(), map[string]bool{}, set)

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// collectIdents accumulates free identifiers, threading the set of
// comprehension-bound variable names down the walk.
func collectIdents(e *exprpb.Expr, bound map[string]bool, set map[string]struct{}) {
	if e == nil {
		return
	}

	switch k := e.GetExprKind().(type) {
	case *exprpb.Expr_IdentExpr:
		name := k.IdentExpr.GetName()
		if !bound[name] {
			set[name] = struct{}{}
		}

	case *exprpb.Expr_SelectExpr:
		collectIdents(k.SelectExpr.GetOperand(), bound, set)

	case *exprpb.Expr_CallExpr:
		collectIdents(k.CallExpr.GetTarget(), bound, set)
		for _, arg := range k.CallExpr.GetArgs() {
			collectIdents(arg, bound, set)
		}

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.GetElements() {
			collectIdents(el, bound, set)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.GetEntries() {
			collectIdents(entry.GetMapKey(), bound, set)
			collectIdents(entry.GetValue(), bound, set)
		}

	case *exprpb.Expr_ComprehensionExpr:
		c := k.ComprehensionExpr
		collectIdents(c.GetIterRange(), bound, set)
		collectIdents(c.GetAccuInit(), bound, set)

		inner := make(map[string]bool, len(bound)+2)
		for name := range bound {
			inner[name] = true
		}
		if c.GetIterVar() != "" {
			inner[c.GetIterVar()] = true
		}
		if c.GetAccuVar() != "" {
			inner[c.GetAccuVar()] = true
		}
		collectIdents(c.GetLoopCondition(), inner, set)
		collectIdents(c.GetLoopStep(), inner, set)
		collectIdents(c.GetResult(), inner, set)
	}
}
