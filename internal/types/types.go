// Package types provides domain models shared across DueKeeper components.
//
// Zero-dependency design for the core model: types.go, rulesets.go and
// errors.go use only the standard library so the engine packages can share
// them without pulling in transport or storage concerns. ID utilities in
// ids.go import uuid but are isolated for selective inclusion.
package types

// Record is one row of an accounting dataset: an open mapping of column
// name to value. Values carry mixed types (string, numeric, date); no
// fixed schema exists beyond what rules and report fields reference.
type Record map[string]any

// Clone returns an independent shallow copy of the record.
// Values are not deep-copied; rule application only ever replaces whole
// cell values, never mutates them in place.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SheetRole identifies one of the four fixed report partitions.
type SheetRole string

const (
	RoleData    SheetRole = "data"
	RoleRatio   SheetRole = "ratio"
	RoleSummary SheetRole = "summary"
	RoleSales   SheetRole = "sales"
)

// SheetRoles lists all roles in report order.
var SheetRoles = []SheetRole{RoleData, RoleRatio, RoleSummary, RoleSales}

// DefaultSheetName returns the display name used when a ruleset does not
// map the role. The summary default is German, matching the historical
// report layout.
func DefaultSheetName(role SheetRole) string {
	switch role {
	case RoleData:
		return "Data"
	case RoleRatio:
		return "Ratio"
	case RoleSummary:
		return "Zusammenfassung"
	case RoleSales:
		return "Sales"
	default:
		return string(role)
	}
}

// KnownSheetRole reports whether the role is one of the four fixed roles.
func KnownSheetRole(role SheetRole) bool {
	switch role {
	case RoleData, RoleRatio, RoleSummary, RoleSales:
		return true
	}
	return false
}

// Well-known dataset columns the engine itself reads or writes.
// Everything else in a record is opaque configuration-driven data.
const (
	// ColCountry and ColCompanyCode scope a record to its accounting unit.
	ColCountry     = "Country"
	ColCompanyCode = "Company_Code"

	// ColCaseID holds the country-specific case identifier matched against
	// each ruleset's case pattern during entity resolution.
	ColCaseID = "Case_ID"

	// ColEntity is written by the resolver: the owning entity name, or
	// UnresolvedTag when no ruleset claims the record.
	ColEntity = "Entity"

	// ColSheetClass is read by the default sheet classifier. Upstream
	// processing writes one of "ratio", "summary", "sales"; anything else
	// routes to the data sheet.
	ColSheetClass = "Sheet_Class"
)

// UnresolvedTag marks records no configured entity claims. They are kept
// in the final report for visibility but excluded from rule processing.
const UnresolvedTag = "Unresolved"

// Resource limits enforced by the engine.
const (
	// MaxRuleChainLength bounds a single entity's ordered rule list.
	// 256 rules is an order of magnitude above the largest known ruleset.
	MaxRuleChainLength = 256

	// MaxPredicateLength bounds a single predicate expression.
	// 4KB accommodates verbose multi-clause conditions without allowing
	// pathological expressions into the evaluator.
	MaxPredicateLength = 4096

	// PredicateCostLimit caps CEL evaluation cost per predicate to keep
	// a misconfigured expression from dominating a run.
	PredicateCostLimit = 1_000_000
)
