// internal/report/assemble.go
package report

import (
	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/rules"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Report assembly.
 *
 * Projects the fully processed dataset onto the entity's configured
 * report_fields column order and partitions rows into the four fixed
 * sheet roles (data/ratio/summary/sales).
 *
 * Projection is forgiving by design: a configured column absent from the
 * dataset fills the empty sentinel and is recorded as a
 * MissingReportField warning. Reports must render even with partially
 * populated data; a typo in report layout is a warning, a typo in a rule
 * predicate is an error.
 *
 * Row classification is not decided here. The assembler routes rows a
 * classifier collaborator has already classified, and applies label
 * substitution from sheet_names with role-default fallback.
 */

// Sentinel fills projected cells whose column the dataset lacks.
const Sentinel = ""

// Classifier assigns a processed row to one of the four sheet roles.
// External collaborator; see DefaultClassifier.
type Classifier func(types.Record) types.SheetRole

// Sheet is one named, column-ordered report partition.
type Sheet struct {
	Role    types.SheetRole
	Name    string
	Columns []string
	Rows    [][]any
}

// MissingField records a report_fields entry absent from the dataset.
type MissingField struct {
	Entity string
	Column string
}

// Summary is the completeness summary emitted alongside every report.
type Summary struct {
	TotalRecords      int
	UnresolvedRecords int
	FailedEntities    []string
	MissingFields     []MissingField
	RowsPerRole       map[types.SheetRole]int
}

// Report is the assembled output handed to the report writer.
type Report struct {
	Entity  string
	RunID   types.RunID
	Sheets  []Sheet
	Summary Summary
}

// Assemble builds the four sheet projections for one entity's layout
// from the processed dataset and run result.
func Assemble(res *rules.Result, entity *types.EntityRuleset, classify Classifier, log *zap.Logger) *Report {
	if classify == nil {
		classify = DefaultClassifier
	}

	rep := &Report{
		Entity: entity.Name,
		Summary: Summary{
			TotalRecords:      res.Dataset.Len(),
			UnresolvedRecords: res.Unresolved,
			FailedEntities:    res.FailedEntities(),
			RowsPerRole:       make(map[types.SheetRole]int, len(types.SheetRoles)),
		},
	}

	fields := entity.ReportFields
	rep.Summary.MissingFields = missingFields(res.Dataset, entity, log)

	byRole := make(map[types.SheetRole][][]any, len(types.SheetRoles))
	for i := 0; i < res.Dataset.Len(); i++ {
		row := res.Dataset.Row(i)
		role := classify(row)
		if !types.KnownSheetRole(role) {
			role = types.RoleData
		}
		byRole[role] = append(byRole[role], project(row, fields))
		rep.Summary.RowsPerRole[role]++
	}

	for _, role := range types.SheetRoles {
		columns := make([]string, len(fields))
		copy(columns, fields)
		rep.Sheets = append(rep.Sheets, Sheet{
			Role:    role,
			Name:    entity.SheetName(role),
			Columns: columns,
			Rows:    byRole[role],
		})
	}

	return rep
}

// project maps one row onto the configured column order. Output length
// always equals len(fields) regardless of dataset column order.
func project(row types.Record, fields []string) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		if v, ok := row[f]; ok && v != nil {
			out[i] = v
		} else {
			out[i] = Sentinel
		}
	}
	return out
}

// missingFields reports configured columns the dataset does not carry.
func missingFields(ds *dataset.Dataset, entity *types.EntityRuleset, log *zap.Logger) []MissingField {
	var missing []MissingField
	for _, f := range entity.ReportFields {
		if ds.HasColumn(f) {
			continue
		}
		missing = append(missing, MissingField{Entity: entity.Name, Column: f})
		log.Warn("report field missing from dataset",
			zap.String("entity", entity.Name),
			zap.String("column", f))
	}
	return missing
}
