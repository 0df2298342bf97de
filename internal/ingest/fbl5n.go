// Package ingest converts raw SAP export text into datasets.
//
// The engine itself is format-agnostic; this collaborator knows the
// FBL5N open-line-items export: pipe-delimited rows, amounts in the SAP
// convention ("1.234,56-" for -1234.56), day-first dates, and case IDs
// embedded free-form in the Text field.
package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/types"
)

// Column layout of the FBL5N line-item export.
var lineItemColumns = []string{
	"Head_Office",
	"Branch",
	"Currency",
	"Document_Number",
	"Document_Type",
	"Document_Date",
	"Due_Date",
	"Arrears",
	"Clearing_Document",
	"DC_Amount",
	"Account_Assignment",
	"Tax",
	"Text",
	"Clearing_Date",
}

// dataLine matches exported table rows: pipe-framed lines whose first
// cell is numeric. Header, separator and footer lines fail the match.
var dataLine = regexp.MustCompile(`^\|\s*\d+.*\|$`)

// Scope stamps export-level attributes onto every parsed record. The
// FBL5N export is already scoped to one country and company code; the
// export itself does not repeat them per row.
type Scope struct {
	Country     string
	CompanyCode string
}

// ParseLineItems converts FBL5N export text into a dataset. caseIDRx is
// the entity's case-ID numbering pattern; each row's Case_ID is
// extracted from the Text field with it, staying empty when the text
// carries no recognizable case reference.
func ParseLineItems(text string, caseIDRx string, scope Scope) (*dataset.Dataset, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("export text is empty")
	}

	caseRx, err := compileCaseExtractor(caseIDRx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidCasePattern, err)
	}

	ds := dataset.New(append([]string{types.ColCountry, types.ColCompanyCode, types.ColCaseID}, lineItemColumns...)...)

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !dataLine.MatchString(line) {
			continue
		}

		fields := splitPipeRow(line)
		if len(fields) != len(lineItemColumns) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNo+1, len(lineItemColumns), len(fields))
		}

		rec, err := buildRecord(fields, caseRx, scope)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		ds.Append(rec)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("export text contains no data rows")
	}
	return ds, nil
}

// splitPipeRow strips the framing pipes and quote characters, then
// splits and trims the cells.
func splitPipeRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	line = strings.ReplaceAll(line, `"`, "")

	fields := strings.Split(line, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func buildRecord(fields []string, caseRx *regexp.Regexp, scope Scope) (types.Record, error) {
	rec := types.Record{
		types.ColCountry:     scope.Country,
		types.ColCompanyCode: scope.CompanyCode,
	}
	for i, col := range lineItemColumns {
		rec[col] = fields[i]
	}

	// SAP prints "**" for an empty tax code.
	if rec["Tax"] == "**" {
		rec["Tax"] = ""
	}

	var err error
	if rec["DC_Amount"], err = ParseAmount(fields[colIndex("DC_Amount")]); err != nil {
		return nil, fmt.Errorf("DC_Amount: %w", err)
	}
	arrears, err := ParseAmount(fields[colIndex("Arrears")])
	if err != nil {
		return nil, fmt.Errorf("Arrears: %w", err)
	}
	rec["Arrears"] = int64(arrears)

	for _, col := range []string{"Document_Date", "Due_Date", "Clearing_Date"} {
		v, err := parseDate(fields[colIndex(col)])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		rec[col] = v
	}

	rec[types.ColCaseID] = ExtractCaseID(fields[colIndex("Text")], caseRx)
	return rec, nil
}

func colIndex(name string) int {
	for i, c := range lineItemColumns {
		if c == name {
			return i
		}
	}
	return -1
}

// ParseAmount converts an SAP-format amount ("1.234,56-") to a float.
// Thousands dots drop, the decimal comma becomes a point, and a trailing
// minus moves to the front.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasSuffix(s, "-") {
		s = "-" + strings.TrimRight(s, "-")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// parseDate converts a day-first SAP date. Empty cells (open items have
// no clearing date) stay nil.
func parseDate(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("02.01.2006", s)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// compileCaseExtractor wraps the entity's case-ID numbering pattern in
// the dispute-reference convention used in item text: an optional "D" or
// "DP" marker with separators, not preceded by a letter.
func compileCaseExtractor(caseIDRx string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)(?:\A|[^a-zA-Z])DP?\s*[-_/]?\s*(` + caseIDRx + `)`)
}

// ExtractCaseID pulls the first case reference out of free-form item
// text. Returns the empty string when no reference is present.
func ExtractCaseID(text string, caseRx *regexp.Regexp) string {
	m := caseRx.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
