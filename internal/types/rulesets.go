// internal/types/rulesets.go
package types

import "regexp"

/*
 * Domain types for entity rulesets.
 *
 * An EntityRuleset is the typed, validated in-memory form of one entity's
 * configuration block: how its records are recognized (country, company
 * code, case-ID pattern), the ordered mutation rules applied to them, and
 * the report layout (column order, sheet names).
 *
 * Rulesets are built once at load by the configuration collaborator
 * (internal/rulesets) and are immutable for the duration of a run, so they
 * are safe for concurrent read access by per-entity workers.
 */

// EntityKind distinguishes worklist-scoped entities from whole-country ones.
type EntityKind string

const (
	KindWorklist EntityKind = "worklist"
	KindCountry  EntityKind = "country"
)

// KnownEntityKind reports whether the kind is a recognized value.
func KnownEntityKind(kind EntityKind) bool {
	return kind == KindWorklist || kind == KindCountry
}

// Rule is one ordered mutation step: a boolean row-selection predicate
// plus the column and value assigned to every matching row.
//
// The predicate is a CEL expression over dataset columns. The target
// column need not pre-exist; rules may introduce new columns, and columns
// introduced by earlier rules in the same chain are visible to later ones.
type Rule struct {
	Predicate    string
	TargetColumn string
	Value        any
}

// EntityRuleset is the complete configuration of one entity.
type EntityRuleset struct {
	Name          string
	Country       string
	CompanyCode   string
	Kind          EntityKind
	CaseIDPattern *regexp.Regexp

	// Rules apply strictly in order. An empty list means the entity's
	// records pass through unmodified.
	Rules []Rule

	// ReportFields defines report column order. Non-empty, no duplicates.
	ReportFields []string

	// SheetNames maps sheet roles to display names. Missing roles fall
	// back to DefaultSheetName.
	SheetNames map[SheetRole]string
}

// SheetName returns the configured display name for the role, falling
// back to the role default when unmapped.
func (e *EntityRuleset) SheetName(role SheetRole) string {
	if name, ok := e.SheetNames[role]; ok && name != "" {
		return name
	}
	return DefaultSheetName(role)
}

// CompileCasePattern compiles a case-ID pattern anchored to the full
// identifier. Anchoring matters: pattern `10\d{6}` must reject the
// seven-digit case ID "1012345" rather than prefix-matching it.
func CompileCasePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`\A(?:` + pattern + `)\z`)
}
