// Package rulesets loads and validates entity ruleset configuration.
//
// The rules document maps entity name to its configuration block:
//
//	AUSTRIA:
//	  type: country
//	  country: AT
//	  company_code: "1001"
//	  case_id: '30\d{6}'
//	  rules:
//	    - when: 'Status_Sales == "open" && Arrears > 30'
//	      set: Note
//	      value: Reminder sent
//	  report_fields: [Case_ID, DC_Amount, Note]
//	  report_sheets:
//	    data: Offene Posten
//	    sales: Sales
//
// Validation is fail-fast at load, not mid-chain: every defect in the
// document is collected and surfaced before the engine sees a single
// record. The engine treats loaded rulesets as trusted, immutable input.
package rulesets

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/duekeeper/duekeeper/internal/rules"
	"github.com/duekeeper/duekeeper/internal/types"
)

// ruleDoc is the YAML shape of one rule entry.
type ruleDoc struct {
	When  string `yaml:"when"`
	Set   string `yaml:"set"`
	Value any    `yaml:"value"`
}

// entityDoc is the YAML shape of one entity block.
type entityDoc struct {
	Kind         string            `yaml:"type"`
	Country      string            `yaml:"country"`
	CompanyCode  string            `yaml:"company_code"`
	CaseID       string            `yaml:"case_id"`
	Rules        []ruleDoc         `yaml:"rules"`
	ReportFields []string          `yaml:"report_fields"`
	ReportSheets map[string]string `yaml:"report_sheets"`
}

// LoadFile reads and validates a rules document from disk.
func LoadFile(path string) ([]*types.EntityRuleset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules document: %w", err)
	}
	return Parse(content)
}

// Parse decodes and validates a rules document. All validation errors
// are collected and returned joined, so a defective document surfaces
// every problem in one pass.
func Parse(content []byte) ([]*types.EntityRuleset, error) {
	var doc map[string]entityDoc
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse rules document: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		out  []*types.EntityRuleset
		errs []error
	)
	for _, name := range names {
		rs, err := build(name, doc[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rs)
	}

	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return out, nil
}

// build converts one entity block into a validated EntityRuleset.
func build(name string, doc entityDoc) (*types.EntityRuleset, error) {
	var errs []error

	kind := types.EntityKind(doc.Kind)
	if !types.KnownEntityKind(kind) {
		errs = append(errs, fmt.Errorf("entity %s: %w: %q", name, types.ErrUnknownEntityKind, doc.Kind))
	}

	pattern, err := types.CompileCasePattern(doc.CaseID)
	if err != nil {
		errs = append(errs, fmt.Errorf("entity %s: %w: %v", name, types.ErrInvalidCasePattern, err))
	}

	if len(doc.ReportFields) == 0 {
		errs = append(errs, fmt.Errorf("entity %s: %w", name, types.ErrEmptyReportFields))
	}
	seen := make(map[string]struct{}, len(doc.ReportFields))
	for _, f := range doc.ReportFields {
		if _, dup := seen[f]; dup {
			errs = append(errs, fmt.Errorf("entity %s: %w: %q", name, types.ErrDuplicateReportField, f))
		}
		seen[f] = struct{}{}
	}

	sheets := make(map[types.SheetRole]string, len(doc.ReportSheets))
	for role, display := range doc.ReportSheets {
		r := types.SheetRole(role)
		if !types.KnownSheetRole(r) {
			errs = append(errs, fmt.Errorf("entity %s: %w: %q", name, types.ErrUnknownSheetRole, role))
			continue
		}
		sheets[r] = display
	}

	if len(doc.Rules) > types.MaxRuleChainLength {
		errs = append(errs, fmt.Errorf("entity %s: %w: %d rules", name, types.ErrRuleChainTooLong, len(doc.Rules)))
	}

	ruleList := make([]types.Rule, 0, len(doc.Rules))
	for n, r := range doc.Rules {
		if r.Set == "" {
			errs = append(errs, fmt.Errorf("entity %s rule %d: %w", name, n+1, types.ErrEmptyTargetColumn))
		}
		if len(r.When) > types.MaxPredicateLength {
			errs = append(errs, fmt.Errorf("entity %s rule %d: %w", name, n+1, types.ErrPredicateTooLong))
		} else if _, err := rules.ReferencedColumns(r.When); err != nil {
			// Syntax check only: column existence depends on dataset and
			// chain position, which the engine checks at execution time.
			errs = append(errs, fmt.Errorf("entity %s rule %d: %w: %v", name, n+1, types.ErrInvalidPredicate, err))
		}
		ruleList = append(ruleList, types.Rule{
			Predicate:    r.When,
			TargetColumn: r.Set,
			Value:        r.Value,
		})
	}

	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}

	return &types.EntityRuleset{
		Name:          name,
		Country:       doc.Country,
		CompanyCode:   doc.CompanyCode,
		Kind:          kind,
		CaseIDPattern: pattern,
		Rules:         ruleList,
		ReportFields:  doc.ReportFields,
		SheetNames:    sheets,
	}, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
