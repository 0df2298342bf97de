// internal/rules/orchestrator_test.go
package rules

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

func chainRuleset(t *testing.T, name, country, company, casePattern string, rules ...types.Rule) *types.EntityRuleset {
	t.Helper()
	rs := mustRuleset(t, name, country, company, casePattern)
	rs.Rules = rules
	return rs
}

func TestRunChain_EmptyChainIsIdentity(t *testing.T) {
	entity := chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`)
	sub := dataset.FromRecords([]types.Record{
		{"Case_ID": "30123456", "Status": "open"},
		{"Case_ID": "30999999", "Status": "closed"},
	})
	before := sub.Clone()

	res := RunChain(entity, sub, zap.NewNop())
	if res.Failed() {
		t.Fatalf("RunChain() Err = %v, want nil", res.Err)
	}
	if res.RulesApplied != 0 {
		t.Errorf("RulesApplied = %v, want 0", res.RulesApplied)
	}
	if !sub.Equal(before) {
		t.Errorf("dataset changed by empty chain, want identity")
	}
}

func TestRunChain_SequentialOrder(t *testing.T) {
	// The second rule reads the column the first introduces; order is
	// load-bearing.
	entity := chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`,
		types.Rule{Predicate: `Status == "open"`, TargetColumn: "Stage", Value: "review"},
		types.Rule{Predicate: `Stage == "review"`, TargetColumn: "Owner", Value: "collections"},
	)
	sub := dataset.FromRecords([]types.Record{
		{"Case_ID": "30123456", "Status": "open"},
		{"Case_ID": "30999999", "Status": "closed"},
	})

	res := RunChain(entity, sub, zap.NewNop())
	if res.Failed() {
		t.Fatalf("RunChain() Err = %v, want nil", res.Err)
	}
	if res.RulesApplied != 2 {
		t.Errorf("RulesApplied = %v, want 2", res.RulesApplied)
	}
	if res.RowsMatched != 2 {
		t.Errorf("RowsMatched = %v, want 2 (one per rule)", res.RowsMatched)
	}
	if sub.Row(0)["Owner"] != "collections" {
		t.Errorf("Row(0)[Owner] = %v, want collections", sub.Row(0)["Owner"])
	}
	if _, ok := sub.Row(1)["Owner"]; ok {
		t.Errorf("Row(1)[Owner] present, want closed row untouched")
	}
}

func TestRunChain_AbortRetainsPriorMutations(t *testing.T) {
	entity := chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`,
		types.Rule{Predicate: `Status == "open"`, TargetColumn: "Stage", Value: "review"},
		types.Rule{Predicate: `Typo_Column == "x"`, TargetColumn: "Owner", Value: "y"},
		types.Rule{Predicate: `true`, TargetColumn: "Never", Value: "z"},
	)
	sub := dataset.FromRecords([]types.Record{
		{"Case_ID": "30123456", "Status": "open"},
	})

	res := RunChain(entity, sub, zap.NewNop())
	if !res.Failed() {
		t.Fatalf("Failed() = false, want chain abort on unknown column")
	}
	if !errors.Is(res.Err, types.ErrUnknownColumnReference) {
		t.Errorf("errors.Is(ErrUnknownColumnReference) = false, got %v", res.Err)
	}
	if res.RulesApplied != 1 {
		t.Errorf("RulesApplied = %v, want 1 (abort after first rule)", res.RulesApplied)
	}
	if sub.Row(0)["Stage"] != "review" {
		t.Errorf("Row(0)[Stage] = %v, want prior mutation retained", sub.Row(0)["Stage"])
	}
	if sub.HasColumn("Never") {
		t.Errorf("HasColumn(Never) = true, want rules after abort never executed")
	}
}

func TestRun_MultipleEntities(t *testing.T) {
	rulesets := []*types.EntityRuleset{
		chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`,
			types.Rule{Predicate: `true`, TargetColumn: "Note", Value: "at"}),
		chainRuleset(t, "GERMANY", "DE", "2001", `10\d{6}`,
			types.Rule{Predicate: `true`, TargetColumn: "Note", Value: "de"}),
	}
	ds := dataset.FromRecords([]types.Record{
		{types.ColCountry: "AT", types.ColCompanyCode: "1001", types.ColCaseID: "30123456"},
		{types.ColCountry: "DE", types.ColCompanyCode: "2001", types.ColCaseID: "10123456"},
		{types.ColCountry: "CH", types.ColCompanyCode: "5001", types.ColCaseID: "77777777"},
	})

	res, err := Run(ds, rulesets, 4, zap.NewNop())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if len(res.Chains) != 2 {
		t.Fatalf("len(Chains) = %v, want 2", len(res.Chains))
	}
	// Chain results ordered by entity name.
	if res.Chains[0].Entity != "AUSTRIA" || res.Chains[1].Entity != "GERMANY" {
		t.Errorf("chain order = [%v %v], want [AUSTRIA GERMANY]", res.Chains[0].Entity, res.Chains[1].Entity)
	}
	if res.Unresolved != 1 {
		t.Errorf("Unresolved = %v, want 1", res.Unresolved)
	}
	if ds.Row(0)["Note"] != "at" {
		t.Errorf("Row(0)[Note] = %v, want at", ds.Row(0)["Note"])
	}
	if ds.Row(1)["Note"] != "de" {
		t.Errorf("Row(1)[Note] = %v, want de", ds.Row(1)["Note"])
	}
	if _, ok := ds.Row(2)["Note"]; ok {
		t.Errorf("Row(2)[Note] present, want unresolved row excluded from chains")
	}
	if !ds.HasColumn("Note") {
		t.Errorf("HasColumn(Note) = false, want subset columns folded into parent")
	}
}

func TestRun_FailedChainDoesNotStopOthers(t *testing.T) {
	rulesets := []*types.EntityRuleset{
		chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`,
			types.Rule{Predicate: `Typo == 1`, TargetColumn: "Note", Value: "x"}),
		chainRuleset(t, "GERMANY", "DE", "2001", `10\d{6}`,
			types.Rule{Predicate: `true`, TargetColumn: "Note", Value: "de"}),
	}
	ds := dataset.FromRecords([]types.Record{
		{types.ColCountry: "AT", types.ColCompanyCode: "1001", types.ColCaseID: "30123456"},
		{types.ColCountry: "DE", types.ColCompanyCode: "2001", types.ColCaseID: "10123456"},
	})

	res, err := Run(ds, rulesets, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (chain failure is per-entity)", err)
	}

	failed := res.FailedEntities()
	if len(failed) != 1 || failed[0] != "AUSTRIA" {
		t.Errorf("FailedEntities() = %v, want [AUSTRIA]", failed)
	}
	if ds.Row(1)["Note"] != "de" {
		t.Errorf("Row(1)[Note] = %v, want healthy chain completed", ds.Row(1)["Note"])
	}
}

func TestRun_AmbiguityAbortsBeforeChains(t *testing.T) {
	rulesets := []*types.EntityRuleset{
		chainRuleset(t, "ALPHA", "AT", "1001", `30\d{6}`,
			types.Rule{Predicate: `true`, TargetColumn: "Note", Value: "x"}),
		chainRuleset(t, "BETA", "AT", "1001", `30\d{6}`),
	}
	ds := dataset.FromRecords([]types.Record{
		{types.ColCountry: "AT", types.ColCompanyCode: "1001", types.ColCaseID: "30123456"},
	})

	_, err := Run(ds, rulesets, 2, zap.NewNop())
	if !errors.Is(err, types.ErrAmbiguousEntityConfiguration) {
		t.Fatalf("errors.Is(ErrAmbiguousEntityConfiguration) = false, got %v", err)
	}
	if ds.HasColumn("Note") {
		t.Errorf("HasColumn(Note) = true, want no chain executed after ambiguity")
	}
}

func TestRun_SingleWorkerMatchesConcurrent(t *testing.T) {
	build := func() (*dataset.Dataset, []*types.EntityRuleset) {
		rulesets := []*types.EntityRuleset{
			chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`,
				types.Rule{Predicate: `true`, TargetColumn: "Note", Value: "at"}),
			chainRuleset(t, "GERMANY", "DE", "2001", `10\d{6}`,
				types.Rule{Predicate: `true`, TargetColumn: "Flag", Value: "de"}),
		}
		ds := dataset.FromRecords([]types.Record{
			{types.ColCountry: "AT", types.ColCompanyCode: "1001", types.ColCaseID: "30123456"},
			{types.ColCountry: "DE", types.ColCompanyCode: "2001", types.ColCaseID: "10123456"},
		})
		return ds, rulesets
	}

	seqDS, seqRS := build()
	if _, err := Run(seqDS, seqRS, 1, zap.NewNop()); err != nil {
		t.Fatalf("Run(workers=1) error = %v, want nil", err)
	}
	conDS, conRS := build()
	if _, err := Run(conDS, conRS, 8, zap.NewNop()); err != nil {
		t.Fatalf("Run(workers=8) error = %v, want nil", err)
	}

	for i := 0; i < seqDS.Len(); i++ {
		for _, c := range []string{"Note", "Flag", types.ColEntity} {
			if seqDS.Row(i)[c] != conDS.Row(i)[c] {
				t.Errorf("Row(%d)[%s]: sequential %v != concurrent %v", i, c, seqDS.Row(i)[c], conDS.Row(i)[c])
			}
		}
	}
}

func TestApply_PropertyAssignmentTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("always-true rule assigns every row and preserves shape", prop.ForAll(
		func(n int, value string) bool {
			records := make([]types.Record, n)
			for i := range records {
				records[i] = types.Record{
					"Case_ID":   fmt.Sprintf("30%06d", i),
					"DC_Amount": float64(i),
				}
			}
			ds := dataset.FromRecords(records)

			rule := types.Rule{Predicate: `DC_Amount >= 0.0`, TargetColumn: "Flag", Value: value}
			out, err := Apply(ds, rule, zap.NewNop())
			if err != nil || out.Matched != n || ds.Len() != n {
				return false
			}
			for i := 0; i < n; i++ {
				if ds.Row(i)["Flag"] != value {
					return false
				}
				if ds.Row(i)["Case_ID"] != fmt.Sprintf("30%06d", i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestApply_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("re-applying a rule to its own output is a fixpoint", prop.ForAll(
		func(n int, threshold int, value string) bool {
			records := make([]types.Record, n)
			for i := range records {
				records[i] = types.Record{
					"Case_ID":   fmt.Sprintf("30%06d", i),
					"DC_Amount": float64(i - n/2),
				}
			}
			ds := dataset.FromRecords(records)

			rule := types.Rule{
				Predicate:    fmt.Sprintf(`DC_Amount > %d.0`, threshold),
				TargetColumn: "Flag",
				Value:        value,
			}
			first, err := Apply(ds, rule, zap.NewNop())
			if err != nil {
				return false
			}
			snapshot := ds.Clone()

			second, err := Apply(ds, rule, zap.NewNop())
			return err == nil && second.Matched == first.Matched && ds.Equal(snapshot)
		},
		gen.IntRange(1, 40),
		gen.IntRange(-20, 20),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestRunChain_PropertyOrderSensitive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("swapping cross-referencing rules changes the outcome", prop.ForAll(
		func(n int, marker string) bool {
			// Non-empty value distinct from the initial Review cells.
			value := "v" + marker

			forward := types.Rule{Predicate: `Origin == "a"`, TargetColumn: "Review", Value: value}
			backward := types.Rule{Predicate: fmt.Sprintf(`Review == %q`, value), TargetColumn: "Origin", Value: "b"}

			build := func() *dataset.Dataset {
				records := make([]types.Record, n)
				for i := range records {
					origin := "x"
					if i%2 == 0 {
						origin = "a"
					}
					records[i] = types.Record{
						"Case_ID": fmt.Sprintf("30%06d", i),
						"Origin":  origin,
						"Review":  "",
					}
				}
				return dataset.FromRecords(records)
			}

			// forward then backward: matched rows end up Origin "b".
			ab := build()
			abRes := RunChain(chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`, forward, backward), ab, zap.NewNop())
			// backward then forward: backward sees no marked rows yet.
			ba := build()
			baRes := RunChain(chainRuleset(t, "AUSTRIA", "AT", "1001", `30\d{6}`, backward, forward), ba, zap.NewNop())

			if abRes.Failed() || baRes.Failed() {
				return false
			}
			for i := 0; i < n; i++ {
				if i%2 != 0 {
					continue
				}
				if ab.Row(i)["Origin"] != "b" || ba.Row(i)["Origin"] != "a" {
					return false
				}
				if ab.Row(i)["Review"] != value || ba.Row(i)["Review"] != value {
					return false
				}
			}
			return !ab.Equal(ba)
		},
		gen.IntRange(1, 30),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestRunChain_PropertyEmptyChainIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rx, err := types.CompileCasePattern(`30\d{6}`)
	if err != nil {
		t.Fatalf("CompileCasePattern() error = %v, want nil", err)
	}
	entity := &types.EntityRuleset{
		Name:          "AUSTRIA",
		Country:       "AT",
		CompanyCode:   "1001",
		Kind:          types.KindCountry,
		CaseIDPattern: rx,
		ReportFields:  []string{"Case_ID"},
	}

	properties.Property("chains with no rules never change the dataset", prop.ForAll(
		func(n int, status string) bool {
			records := make([]types.Record, n)
			for i := range records {
				records[i] = types.Record{
					"Case_ID": fmt.Sprintf("30%06d", i),
					"Status":  status,
				}
			}
			ds := dataset.FromRecords(records)
			before := ds.Clone()

			res := RunChain(entity, ds, zap.NewNop())
			return !res.Failed() && ds.Equal(before)
		},
		gen.IntRange(0, 30),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
