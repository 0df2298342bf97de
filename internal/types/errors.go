package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for DueKeeper operations.
var (
	// ErrAmbiguousEntityConfiguration indicates two or more rulesets claim
	// the same record. Configuration defect, fatal to the whole run.
	ErrAmbiguousEntityConfiguration = errors.New("ambiguous entity configuration")

	// ErrUnknownColumnReference indicates a rule predicate references a
	// column absent from the dataset at the time the rule executes.
	ErrUnknownColumnReference = errors.New("unknown column reference")

	// ErrInvalidPredicate indicates a rule predicate failed to parse.
	ErrInvalidPredicate = errors.New("invalid rule predicate")

	// ErrInvalidCasePattern indicates a case_id pattern failed to compile.
	ErrInvalidCasePattern = errors.New("invalid case ID pattern")

	// ErrEmptyReportFields indicates a ruleset with no report columns.
	ErrEmptyReportFields = errors.New("report_fields must not be empty")

	// ErrDuplicateReportField indicates a repeated report column.
	ErrDuplicateReportField = errors.New("duplicate report field")

	// ErrUnknownSheetRole indicates a sheet mapping for an unknown role.
	ErrUnknownSheetRole = errors.New("unknown sheet role")

	// ErrUnknownEntityKind indicates an unrecognized entity type value.
	ErrUnknownEntityKind = errors.New("unknown entity kind")

	// ErrEmptyTargetColumn indicates a rule with no assignment target.
	ErrEmptyTargetColumn = errors.New("rule target column must not be empty")

	// ErrRuleChainTooLong indicates a ruleset exceeds MaxRuleChainLength.
	ErrRuleChainTooLong = errors.New("rule chain exceeds maximum length")

	// ErrPredicateTooLong indicates a predicate exceeds MaxPredicateLength.
	ErrPredicateTooLong = errors.New("predicate exceeds maximum length")
)

// UnknownColumnError reports which predicate column was missing.
// Unwraps to ErrUnknownColumnReference for errors.Is checks.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column reference %q", e.Column)
}

func (e *UnknownColumnError) Unwrap() error { return ErrUnknownColumnReference }

// AmbiguousEntityError reports which rulesets claim the same record.
// Unwraps to ErrAmbiguousEntityConfiguration for errors.Is checks.
type AmbiguousEntityError struct {
	CaseID   string
	Entities []string
}

func (e *AmbiguousEntityError) Error() string {
	return fmt.Sprintf("case ID %q claimed by entities %s", e.CaseID, strings.Join(e.Entities, ", "))
}

func (e *AmbiguousEntityError) Unwrap() error { return ErrAmbiguousEntityConfiguration }
