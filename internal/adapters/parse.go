package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	// ErrInvalidAmount is returned when a value cannot be read as a finite amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidDate is returned for unrecognized or calendar-invalid dates.
	ErrInvalidDate = errors.New("invalid date")
)

// ParseAmount reads a signed amount from a numeric value or a string such as
// "$1,234.50", "-12.00" or "(12.00)".
func ParseAmount(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, x.String())
		}
		f = parsed
	case string:
		parsed, err := parseAmountString(x)
		if err != nil {
			return 0, err
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("%w: missing", ErrInvalidAmount)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidAmount)
	}
	return f, nil
}

func parseAmountString(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "-") && negative {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if s == "" || s == "-" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		f = -f
	}
	return f, nil
}

// FormatAmount renders the magnitude of v with exactly two fraction digits.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
}

var (
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	monthDate = regexp.MustCompile(`^([A-Za-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})$`)
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate reads a calendar date from MM/DD/YYYY, ISO, month-name strings,
// a time.Time, or a number of unix milliseconds.
func ParseDate(v any) (civil.Date, error) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return civil.Date{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return civil.DateOf(x), nil
	case civil.Date:
		if !x.IsValid() {
			return civil.Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, x)
		}
		return x, nil
	case float64:
		return fromUnixMilli(x)
	case int64:
		return fromUnixMilli(float64(x))
	case int:
		return fromUnixMilli(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, x.String())
		}
		return fromUnixMilli(f)
	case string:
		return parseDateString(x)
	}
	return civil.Date{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
}

func fromUnixMilli(ms float64) (civil.Date, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return civil.Date{}, fmt.Errorf("%w: not finite", ErrInvalidDate)
	}
	return civil.DateOf(time.UnixMilli(int64(ms)).UTC()), nil
}

func parseDateString(raw string) (civil.Date, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return civil.Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	if m := slashDate.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return calendarDate(raw, year, month, day)
	}

	if m := monthDate.FindStringSubmatch(s); m != nil {
		month := monthNumber(m[1])
		if month == 0 {
			return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return calendarDate(raw, year, month, day)
	}

	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// calendarDate rejects dates that time.Date would silently roll over,
// such as 02/30/2025.
func calendarDate(raw string, year, month, day int) (civil.Date, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return civil.Date{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, raw)
	}
	return civil.DateOf(t), nil
}

// monthNumber accepts full names and abbreviations of at least three
// letters ("Sep", "Sept", "September").
func monthNumber(word string) int {
	w := strings.ToLower(word)
	if len(w) < 3 {
		return 0
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, w) {
			return i + 1
		}
	}
	return 0
}

// FormatSlashDate renders d as MM/DD/YYYY.
func FormatSlashDate(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
}
