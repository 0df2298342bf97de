// internal/ingest/dms.go
package ingest

import (
	"fmt"
	"strings"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

// Column layout of the UDM_DISPUTE case export.
var disputeColumns = []string{
	"Case_ID",
	"Debitor",
	"Created_On",
	"Processor",
	"Status_Sales",
	"Status_AC",
	"Notification",
	"Category_Description",
	"Category",
	"Root_Cause",
	"Autoclaims_Note",
	"Fax_Number",
	"Status",
	"DMS_Assignment",
}

// ParseDisputes converts UDM_DISPUTE case export text into a dataset
// keyed by Case_ID. Dispute data carries the case-management side of a
// record (processor, sales/accounting status, root cause) and is merged
// onto line items by case ID; line-item cells always win on conflict.
func ParseDisputes(text string) (*dataset.Dataset, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("dispute export text is empty")
	}

	ds := dataset.New(disputeColumns...)

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !dataLine.MatchString(line) {
			continue
		}

		fields := splitPipeRow(line)
		if len(fields) != len(disputeColumns) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNo+1, len(disputeColumns), len(fields))
		}

		rec := types.Record{}
		for i, col := range disputeColumns {
			rec[col] = fields[i]
		}

		createdOn, err := parseDate(fields[disputeColIndex("Created_On")])
		if err != nil {
			return nil, fmt.Errorf("line %d: Created_On: %w", lineNo+1, err)
		}
		rec["Created_On"] = createdOn

		ds.Append(rec)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("dispute export text contains no data rows")
	}
	return ds, nil
}

// MergeDisputes left-joins dispute data onto line items by case ID.
// Every line item survives; items whose case has no dispute record keep
// their cells untouched, and existing line-item columns are never
// overwritten by dispute-side values.
func MergeDisputes(items, disputes *dataset.Dataset) *dataset.Dataset {
	return dataset.LeftJoin(items, disputes, types.ColCaseID)
}

func disputeColIndex(name string) int {
	for i, c := range disputeColumns {
		if c == name {
			return i
		}
	}
	return -1
}
