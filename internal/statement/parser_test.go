package statement

import (
	"strings"
	"testing"
)

var sampleStatement = []string{
	"Page 1 of 3",
	"Jane Doe",
	"Payments and credits",
	"Date Description Amount",
	"Jan 5, 2025 Payment received - thank you -$500.00",
	"Total payments and credits -$500.00",
	"Transactions",
	"Date Description Amount",
	"Jan 7, 2025 AMAZON WEB SERVICES $12.34",
	"aws.amazon.com WA",
	"Jan 9, 2025 DELTA AIR LINES $345.67 Billing Rights Summary What To Do If You Think You Find A Mistake",
	"Total transactions $358.01",
	"Important disclosures",
	"Jan 1, 2025 Rate change notice $0.00",
	"Interest is charged on purchases from the date of the transaction.",
}

func TestParse_SampleStatement(t *testing.T) {
	rows := Parse(sampleStatement)

	if len(rows) != 2 {
		t.Fatalf("Parse() returned %d rows, want 2: %+v", len(rows), rows)
	}

	want := []Row{
		{Date: "Jan 7, 2025", Description: "AMAZON WEB SERVICES aws.amazon.com WA", Amount: "$12.34"},
		{Date: "Jan 9, 2025", Description: "DELTA AIR LINES", Amount: "$345.67"},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []Row
	}{
		{
			name: "rightmost amount wins",
			lines: []string{
				"Transactions",
				"Feb 2, 2025 HOTEL $20.00 deposit $180.00",
			},
			want: []Row{{Date: "Feb 2, 2025", Description: "HOTEL $20.00 deposit", Amount: "$180.00"}},
		},
		{
			name: "amount on continuation line overwrites",
			lines: []string{
				"Transactions",
				"Mar 3, 2025 UBER TRIP",
				"help.uber.com CA $23.45",
			},
			want: []Row{{Date: "Mar 3, 2025", Description: "UBER TRIP help.uber.com CA", Amount: "$23.45"}},
		},
		{
			name: "missing amount is discarded",
			lines: []string{
				"Transactions",
				"Mar 3, 2025 PENDING ITEM",
				"Mar 4, 2025 COFFEE $4.50",
			},
			want: []Row{{Date: "Mar 4, 2025", Description: "COFFEE", Amount: "$4.50"}},
		},
		{
			name: "description made only of legal text is discarded",
			lines: []string{
				"Transactions",
				"Mar 5, 2025 $9.99 In case of errors or questions about your account",
			},
			want: nil,
		},
		{
			name: "overlong description is discarded",
			lines: []string{
				"Transactions",
				"Mar 6, 2025 " + strings.Repeat("x", 201) + " $1.00",
			},
			want: nil,
		},
		{
			name: "lines outside a section are ignored",
			lines: []string{
				"Apr 1, 2025 OPENING BALANCE $100.00",
				"Transactions",
				"Apr 2, 2025 NOTION LABS $10.00",
			},
			want: []Row{{Date: "Apr 2, 2025", Description: "NOTION LABS", Amount: "$10.00"}},
		},
		{
			name: "section header flushes a pending payment",
			lines: []string{
				"Payments & Credits",
				"Apr 1, 2025 REFUND -$15.00",
				"Transactions",
				"Apr 3, 2025 GITHUB $4.00",
			},
			want: []Row{{Date: "Apr 3, 2025", Description: "GITHUB", Amount: "$4.00"}},
		},
		{
			name: "noise lines inside a transaction are dropped",
			lines: []string{
				"Transactions",
				"May 1, 2025 SQUARESPACE",
				"Page 2 of 3",
				"John Smith",
				"Continued on next page",
				"$16.00",
			},
			want: []Row{{Date: "May 1, 2025", Description: "SQUARESPACE", Amount: "$16.00"}},
		},
		{
			name: "full month names and thousands",
			lines: []string{
				"Transactions",
				"September 12, 2025 APPLE STORE $1,299.00",
			},
			want: []Row{{Date: "September 12, 2025", Description: "APPLE STORE", Amount: "$1,299.00"}},
		},
		{
			name:  "empty input",
			lines: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.lines)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRawRows(t *testing.T) {
	rows := RawRows([]Row{{Date: "Jan 7, 2025", Description: "AWS", Amount: "$12.34"}})
	if len(rows) != 1 {
		t.Fatalf("RawRows() len = %d", len(rows))
	}
	if rows[0]["date"] != "Jan 7, 2025" || rows[0]["amount"] != "$12.34" || rows[0]["description"] != "AWS" {
		t.Errorf("RawRows() = %v", rows[0])
	}
}

func TestParseWithStats(t *testing.T) {
	tests := []struct {
		name           string
		lines          []string
		wantRows       int
		wantSection    int
		wantUnanchored int
	}{
		{
			name:        "dated rows",
			lines:       sampleStatement,
			wantRows:    2,
			wantSection: 3,
		},
		{
			name: "dates without year start no row",
			lines: []string{
				"Transactions",
				"Date Description Amount",
				"Jan 7 AMAZON WEB SERVICES $12.34",
				"Jan 9 DELTA AIR LINES $345.67",
				"Total transactions $358.01",
			},
			wantSection:    2,
			wantUnanchored: 2,
		},
		{
			name:  "no transactions section",
			lines: []string{"Payments and credits", "Jan 5, 2025 Payment -$500.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, stats := ParseWithStats(tt.lines)
			if len(rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(rows), tt.wantRows)
			}
			if stats.SectionLines != tt.wantSection {
				t.Errorf("SectionLines = %d, want %d", stats.SectionLines, tt.wantSection)
			}
			if stats.Unanchored != tt.wantUnanchored {
				t.Errorf("Unanchored = %d, want %d", stats.Unanchored, tt.wantUnanchored)
			}
		})
	}
}
