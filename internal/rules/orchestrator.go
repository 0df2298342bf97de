// internal/rules/orchestrator.go
package rules

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Ruleset orchestration.
 *
 * Within one entity: rules apply strictly sequentially, threading the
 * mutated dataset from one rule into the next. Ordering is load-bearing;
 * later rules may depend on columns created or values set by earlier
 * rules, so no reordering and no parallelism inside a chain.
 *
 * Across entities: chains have no data dependency on each other once
 * resolution has partitioned the rows, so they run worker-per-entity.
 * Each worker owns its entity's row subset exclusively; the ruleset set
 * is shared read-only.
 *
 * Failure isolation: a rule failure (typically UnknownColumnReference)
 * aborts that entity's remaining chain. Mutations from prior rules in the
 * chain are retained, the entity is flagged failed, and every other
 * entity keeps running.
 */

// ChainResult reports one entity's chain execution.
type ChainResult struct {
	Entity       string
	RulesApplied int
	RowsMatched  int
	RowsSkipped  int
	Err          error
}

// Failed reports whether the chain aborted before completing.
func (c ChainResult) Failed() bool { return c.Err != nil }

// RunChain applies the entity's rules in configured order to its row
// subset. An empty rule list passes the subset through unchanged.
func RunChain(entity *types.EntityRuleset, sub *dataset.Dataset, log *zap.Logger) ChainResult {
	res := ChainResult{Entity: entity.Name}

	for n, rule := range entity.Rules {
		out, err := Apply(sub, rule, log)
		if err != nil {
			res.Err = fmt.Errorf("rule %d (target %s): %w", n+1, rule.TargetColumn, err)
			log.Error("rule chain aborted",
				zap.String("entity", entity.Name),
				zap.Int("rule", n+1),
				zap.Error(err))
			return res
		}
		res.RulesApplied++
		res.RowsMatched += out.Matched
		res.RowsSkipped += out.Skipped
	}

	return res
}

// Result is the outcome of one full engine run.
type Result struct {
	Dataset    *dataset.Dataset
	Chains     []ChainResult
	Unresolved int
}

// FailedEntities returns the names of entities whose chains aborted.
func (r *Result) FailedEntities() []string {
	var out []string
	for _, c := range r.Chains {
		if c.Failed() {
			out = append(out, c.Entity)
		}
	}
	return out
}

// Run resolves entities and executes their chains concurrently.
// maxWorkers <= 0 means one worker per entity. Ambiguous configuration
// aborts before any chain starts. Chain results are ordered by entity
// name for determinism.
func Run(ds *dataset.Dataset, rulesets []*types.EntityRuleset, maxWorkers int, log *zap.Logger) (*Result, error) {
	part, err := Resolve(ds, rulesets, log)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(part.ByEntity))
	for name := range part.ByEntity {
		names = append(names, name)
	}
	sort.Strings(names)

	byName := make(map[string]*types.EntityRuleset, len(rulesets))
	for _, rs := range rulesets {
		byName[rs.Name] = rs
	}

	if maxWorkers <= 0 {
		maxWorkers = len(names)
	}
	sem := make(chan struct{}, max(maxWorkers, 1))

	subsets := make([]*dataset.Dataset, len(names))
	results := make([]ChainResult, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sub := ds.Subset(part.ByEntity[name])
			subsets[i] = sub
			results[i] = RunChain(byName[name], sub, log)
		}(i, name)
	}
	wg.Wait()

	// Subsets share row maps with the parent, but columns introduced by
	// chains were registered on the subsets only; fold them back in.
	for _, sub := range subsets {
		for _, c := range sub.Columns() {
			ds.AddColumn(c)
		}
	}

	return &Result{Dataset: ds, Chains: results, Unresolved: len(part.Unresolved)}, nil
}
