// internal/ingest/fbl5n_test.go
package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/duekeeper/duekeeper/internal/types"
)

const sampleExport = `
FBL5N Open Items
--------------------------------------------------------------------------------
|Head Office|    Branch|Crcy|Document No|DT|Doc..Date |Due Date  | Arrears|Clrng doc.|    Amount|AccAssgnmt|Tax|Text                  |Clrng date|
--------------------------------------------------------------------------------
| 1001234   | 1001234  |EUR |1400012345 |RV|01.06.2026|01.07.2026|      53|          | 1.234,56-|          |** |Zahlung DP-30123456   |          |
| 1001235   | 1001235  |EUR |1400012346 |RV|15.05.2026|15.06.2026|      68|2000000001|    500,00|          |A1 |Rechnung d 30999999   |05.08.2026|
--------------------------------------------------------------------------------
`

func TestParseLineItems(t *testing.T) {
	scope := Scope{Country: "AT", CompanyCode: "1001"}

	ds, err := ParseLineItems(sampleExport, `30\d{6}`, scope)
	if err != nil {
		t.Fatalf("ParseLineItems() error = %v, want nil", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() = %v, want 2 data rows", ds.Len())
	}

	row := ds.Row(0)
	if row[types.ColCountry] != "AT" || row[types.ColCompanyCode] != "1001" {
		t.Errorf("scope = %v/%v, want AT/1001 stamped on every row", row[types.ColCountry], row[types.ColCompanyCode])
	}
	if row[types.ColCaseID] != "30123456" {
		t.Errorf("Case_ID = %v, want 30123456 extracted from text", row[types.ColCaseID])
	}
	if row["DC_Amount"] != -1234.56 {
		t.Errorf("DC_Amount = %v, want -1234.56", row["DC_Amount"])
	}
	if row["Arrears"] != int64(53) {
		t.Errorf("Arrears = %v (%T), want int64 53", row["Arrears"], row["Arrears"])
	}
	if row["Tax"] != "" {
		t.Errorf("Tax = %q, want ** normalized to empty", row["Tax"])
	}
	wantDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if row["Document_Date"] != wantDate {
		t.Errorf("Document_Date = %v, want %v", row["Document_Date"], wantDate)
	}
	if row["Clearing_Date"] != nil {
		t.Errorf("Clearing_Date = %v, want nil for open item", row["Clearing_Date"])
	}

	second := ds.Row(1)
	if second[types.ColCaseID] != "30999999" {
		t.Errorf("Case_ID = %v, want lowercase d marker recognized", second[types.ColCaseID])
	}
	if second["DC_Amount"] != 500.00 {
		t.Errorf("DC_Amount = %v, want 500", second["DC_Amount"])
	}
	if second["Clearing_Date"] != time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Clearing_Date = %v, want cleared item date parsed", second["Clearing_Date"])
	}

	// Scope and case columns precede export columns.
	cols := ds.Columns()
	if cols[0] != types.ColCountry || cols[1] != types.ColCompanyCode || cols[2] != types.ColCaseID {
		t.Errorf("leading columns = %v, want Country, Company_Code, Case_ID", cols[:3])
	}
}

func TestParseLineItems_EmptyText(t *testing.T) {
	_, err := ParseLineItems("   \n  ", `30\d{6}`, Scope{})
	if err == nil {
		t.Errorf("ParseLineItems() error = nil, want empty-export error")
	}
}

func TestParseLineItems_NoDataRows(t *testing.T) {
	_, err := ParseLineItems("FBL5N Open Items\n|Head Office|Branch|\n", `30\d{6}`, Scope{})
	if err == nil {
		t.Errorf("ParseLineItems() error = nil, want no-data-rows error")
	}
}

func TestParseLineItems_FieldCountMismatch(t *testing.T) {
	_, err := ParseLineItems("| 1001 | EUR |\n", `30\d{6}`, Scope{})
	if err == nil || !strings.Contains(err.Error(), "fields") {
		t.Errorf("ParseLineItems() error = %v, want field count error", err)
	}
}

func TestParseLineItems_BadCasePattern(t *testing.T) {
	_, err := ParseLineItems(sampleExport, `30\d{6`, Scope{})
	if err == nil {
		t.Errorf("ParseLineItems() error = nil, want pattern compile error")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.234,56-", -1234.56},
		{"1.234,56", 1234.56},
		{"500,00", 500.0},
		{"0,01-", -0.01},
		{"12.345.678,90", 12345678.90},
		{"53", 53},
		{"", 0},
		{"  42,00  ", 42},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	if _, err := ParseAmount("abc"); err == nil {
		t.Errorf("ParseAmount(abc) error = nil, want parse error")
	}
}

func TestExtractCaseID(t *testing.T) {
	rx, err := compileCaseExtractor(`30\d{6}`)
	if err != nil {
		t.Fatalf("compileCaseExtractor() error = %v, want nil", err)
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"dp with dash", "Zahlung DP-30123456", "30123456"},
		{"dp with slash", "dp/30123456 Mahnung", "30123456"},
		{"d with space", "Rechnung D 30123456", "30123456"},
		{"marker at start", "DP30123456", "30123456"},
		{"lowercase", "zahlung dp_30123456", "30123456"},
		{"letter before marker rejected", "ADP30123456", ""},
		{"no marker", "Zahlung 30123456", ""},
		{"no reference", "Zahlungseingang Juni", ""},
		{"first reference wins", "DP-30111111 und DP-30222222", "30111111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCaseID(tt.text, rx); got != tt.want {
				t.Errorf("ExtractCaseID(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
