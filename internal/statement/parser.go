package statement

import (
	"regexp"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/adapters"
)

// MaxDescriptionLength is the longest description accepted; anything longer
// is treated as a corrupted extraction.
const MaxDescriptionLength = 200

// Row is one transaction recovered from a statement. Date and Amount are the
// raw strings as printed; adapters normalize them.
type Row struct {
	Date        string
	Description string
	Amount      string
}

// RawRow converts r into the shape adapters consume.
func (r Row) RawRow() adapters.RawRow {
	return adapters.RawRow{
		"date":        r.Date,
		"description": r.Description,
		"amount":      r.Amount,
	}
}

// RawRows converts a slice of rows.
func RawRows(rows []Row) []adapters.RawRow {
	out := make([]adapters.RawRow, len(rows))
	for i, r := range rows {
		out[i] = r.RawRow()
	}
	return out
}

type section int

const (
	sectionNone section = iota
	sectionPayments
	sectionTransactions
)

var (
	datePrefix   = regexp.MustCompile(`^((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})\b`)
	dollarAmount = regexp.MustCompile(`-?\$-?\d[\d,]*\.\d{2}`)

	paymentsHeader     = regexp.MustCompile(`(?i)^payments\s+(?:and|&)\s+credits\b`)
	transactionsHeader = regexp.MustCompile(`(?i)^transactions\b`)

	pageMarker = regexp.MustCompile(`(?i)^(?:page\s+)?\d+\s+(?:of|/)\s+\d+$`)
	personName = regexp.MustCompile(`^[A-Z][a-zA-Z'\-]+ [A-Z][a-zA-Z'\-]+$`)
)

// terminalMarkers end the current section when a line starts with them.
var terminalMarkers = []string{
	"total payments and credits",
	"total payments & credits",
	"total transactions",
	"total fees",
	"total interest",
	"important disclosures",
	"billing rights summary",
	"your billing rights",
	"interest charge calculation",
	"interest charged",
	"fees charged",
	"year-to-date totals",
	"annual percentage rate",
	"legal disclosures",
}

// inlineLegal are boilerplate phrases that can be glued onto a transaction
// line; the description is cut at the earliest one.
var inlineLegal = []string{
	"important disclosures",
	"billing rights summary",
	"your billing rights",
	"in case of errors or questions",
	"interest charge calculation",
	"annual percentage rate",
	"cardholder agreement",
	"this is not a bill",
	"member fdic",
	"please see reverse",
}

// noisePhrases are header and footer lines repeated on every page.
var noisePhrases = []string{
	"date description amount",
	"continued on next page",
	"statement closing date",
	"statement period",
	"account summary",
	"customer service",
	"visit us at",
	"page intentionally left blank",
}

type pending struct {
	date      string
	amount    string
	fragments []string
	section   section
}

// Parse walks extracted lines and returns the rows of the transactions
// section in source order. A row starts at a line opening with a month-name
// date that includes the year ("Jan 7, 2025"); lines dated without a year
// start no row.
func Parse(lines []string) []Row {
	rows, _ := ParseWithStats(lines)
	return rows
}

// ParseStats describes what the transactions section held.
type ParseStats struct {
	// SectionLines counts content lines seen inside a transactions section.
	SectionLines int
	// Unanchored counts those lines that arrived before any dated row.
	Unanchored int
}

// ParseWithStats is Parse plus counts that let callers notice a section
// whose lines never matched a row date.
func ParseWithStats(lines []string) ([]Row, ParseStats) {
	p := &parser{}
	for _, line := range lines {
		p.consume(line)
	}
	p.finalize()
	return p.rows, p.stats
}

type parser struct {
	section section
	current *pending
	rows    []Row
	stats   ParseStats
}

func (p *parser) consume(raw string) {
	line := strings.Join(strings.Fields(raw), " ")
	if line == "" {
		return
	}
	lower := strings.ToLower(line)

	if hasAnyPrefix(lower, terminalMarkers) {
		p.finalize()
		p.section = sectionNone
		return
	}
	if paymentsHeader.MatchString(line) {
		p.finalize()
		p.section = sectionPayments
		return
	}
	if transactionsHeader.MatchString(line) {
		p.finalize()
		p.section = sectionTransactions
		return
	}
	if isNoise(line, lower) {
		return
	}
	if p.section == sectionNone {
		return
	}
	if p.section == sectionTransactions {
		p.stats.SectionLines++
	}

	if m := datePrefix.FindStringSubmatchIndex(line); m != nil {
		p.finalize()
		date := line[m[2]:m[3]]
		amount, rest := splitAmount(line[m[1]:])
		p.current = &pending{date: date, amount: amount, section: p.section}
		if rest != "" {
			p.current.fragments = append(p.current.fragments, rest)
		}
		return
	}

	if p.current == nil {
		if p.section == sectionTransactions {
			p.stats.Unanchored++
		}
		return
	}
	amount, rest := splitAmount(line)
	if amount != "" {
		p.current.amount = amount
	}
	if rest != "" {
		p.current.fragments = append(p.current.fragments, rest)
	}
}

// finalize emits the pending transaction if it belongs to the transactions
// section and survives the sanity checks.
func (p *parser) finalize() {
	cur := p.current
	p.current = nil
	if cur == nil || cur.section != sectionTransactions {
		return
	}

	desc := truncateLegal(strings.Join(strings.Fields(strings.Join(cur.fragments, " ")), " "))
	if cur.amount == "" || desc == "" || len(desc) > MaxDescriptionLength {
		return
	}
	p.rows = append(p.rows, Row{Date: cur.date, Description: desc, Amount: cur.amount})
}

// splitAmount removes the rightmost dollar amount from s and returns it
// together with the remaining text.
func splitAmount(s string) (amount, rest string) {
	matches := dollarAmount.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return "", strings.TrimSpace(s)
	}
	last := matches[len(matches)-1]
	amount = s[last[0]:last[1]]
	rest = strings.Join(strings.Fields(s[:last[0]]+" "+s[last[1]:]), " ")
	return amount, rest
}

var legalPattern = compileAlternation(inlineLegal)

func compileAlternation(phrases []string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

func truncateLegal(desc string) string {
	if loc := legalPattern.FindStringIndex(desc); loc != nil {
		desc = desc[:loc[0]]
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(desc), "-:;,"))
}

func isNoise(line, lower string) bool {
	if pageMarker.MatchString(line) || personName.MatchString(line) {
		return true
	}
	return hasAnyPrefix(lower, noisePhrases)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
