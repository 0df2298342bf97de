// internal/rules/evaluate.go
package rules

import (
	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Single-rule application.
 *
 * Applies one compiled rule to a dataset: evaluate the predicate against
 * every row, then assign the configured value to the target column on
 * exactly the matched rows. All other rows and columns are untouched.
 *
 * Selection snapshot: the full matched-row set is computed before any
 * mutation is applied. When predicate and target reference the same
 * column, selection therefore uses pre-assignment values.
 *
 * Idempotence: re-running a rule against its own output selects the same
 * rows (target not in predicate) and re-assigns the same value. No
 * accumulation, no toggling.
 *
 * Per-row evaluation errors (sparse cells compared against typed
 * targets) count the row as not matched and are reported in the outcome,
 * mirroring how the source system's query engine treated NA cells.
 * A zero-row match is a no-op, not an error.
 */

// Outcome summarizes one rule application.
type Outcome struct {
	Matched int // rows selected and assigned
	Skipped int // rows whose predicate evaluation errored
}

// Apply compiles the rule against the dataset's current columns and
// executes it. Returns UnknownColumnError (wrapping
// ErrUnknownColumnReference) before touching any row when the predicate
// references a column the dataset does not have.
func Apply(ds *dataset.Dataset, rule types.Rule, log *zap.Logger) (Outcome, error) {
	compiled, err := Compile(rule, ds.Columns())
	if err != nil {
		return Outcome{}, err
	}
	return compiled.Apply(ds, log)
}

// Apply executes the compiled rule against the dataset.
func (cr *CompiledRule) Apply(ds *dataset.Dataset, log *zap.Logger) (Outcome, error) {
	columns := ds.Columns()
	matched := make([]int, 0, ds.Len())
	var out Outcome

	for i := 0; i < ds.Len(); i++ {
		val, _, err := cr.prog.Eval(Activation(columns, ds.Row(i)))
		if err != nil {
			out.Skipped++
			log.Debug("predicate skipped row",
				zap.String("target", cr.Rule.TargetColumn),
				zap.Int("row", i),
				zap.Error(err))
			continue
		}
		if b, ok := val.Value().(bool); ok && b {
			matched = append(matched, i)
		}
	}

	// Selection complete; mutation is all-or-nothing across matched rows.
	ds.AddColumn(cr.Rule.TargetColumn)
	for _, i := range matched {
		ds.Set(i, cr.Rule.TargetColumn, cr.Rule.Value)
	}

	out.Matched = len(matched)
	return out, nil
}
