// internal/report/classify.go
package report

import (
	"strings"

	"github.com/duekeeper/duekeeper/internal/types"
)

// DefaultClassifier routes rows on the well-known Sheet_Class column
// written by upstream processing ("ratio", "summary", "sales"). Anything
// else, including rows without the column, lands on the data sheet.
func DefaultClassifier(row types.Record) types.SheetRole {
	v, ok := row[types.ColSheetClass]
	if !ok {
		return types.RoleData
	}
	s, ok := v.(string)
	if !ok {
		return types.RoleData
	}
	switch types.SheetRole(strings.ToLower(strings.TrimSpace(s))) {
	case types.RoleRatio:
		return types.RoleRatio
	case types.RoleSummary:
		return types.RoleSummary
	case types.RoleSales:
		return types.RoleSales
	default:
		return types.RoleData
	}
}
