package adapters

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{"plain", "12.34", 12.34, false},
		{"dollar", "$12.34", 12.34, false},
		{"thousands", "$1,234.50", 1234.50, false},
		{"negative", "-$1,234.50", -1234.50, false},
		{"negative after symbol", "$-20.00", -20, false},
		{"parenthesized", "(45.10)", -45.10, false},
		{"padded", "  7.00 ", 7, false},
		{"float", 3.5, 3.5, false},
		{"int", 42, 42, false},
		{"json number", json.Number("-8.25"), -8.25, false},
		{"empty", "", 0, true},
		{"dash only", "-", 0, true},
		{"words", "twelve", 0, true},
		{"nan string", "NaN", 0, true},
		{"inf string", "Inf", 0, true},
		{"nan float", math.NaN(), 0, true},
		{"nil", nil, 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseAmount(%v) error = %v, want ErrInvalidAmount", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%v) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// Noise characters never change the parsed value of a two-decimal amount.
func TestParseAmount_NoiseInvariant(t *testing.T) {
	for cents := int64(0); cents < 2_000_000; cents += 7919 {
		clean := strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
		want, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			t.Fatal(err)
		}

		noisy := "$" + withThousands(clean)
		got, err := ParseAmount(noisy)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", noisy, err)
		}
		if got != want {
			t.Fatalf("ParseAmount(%q) = %v, want %v", noisy, got, want)
		}
	}
}

func withThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "." + frac
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12.5, "12.50"},
		{-12.5, "12.50"},
		{0, "0.00"},
		{1234.567, "1234.57"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2025, Month: time.March, Day: 7}

	tests := []struct {
		name    string
		in      any
		want    civil.Date
		wantErr bool
	}{
		{"slash", "03/07/2025", want, false},
		{"slash single digits", "3/7/2025", want, false},
		{"iso", "2025-03-07", want, false},
		{"rfc3339", "2025-03-07T10:00:00Z", want, false},
		{"iso no zone", "2025-03-07T10:00:00", want, false},
		{"month abbrev", "Mar 7, 2025", want, false},
		{"month full", "March 7, 2025", want, false},
		{"month no comma", "Mar 7 2025", want, false},
		{"month dotted", "Mar. 7, 2025", want, false},
		{"sept", "Sept 7, 2025", civil.Date{Year: 2025, Month: time.September, Day: 7}, false},
		{"time", time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC), want, false},
		{"unix millis", float64(time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC).UnixMilli()), want, false},
		{"feb 30", "02/30/2025", civil.Date{}, true},
		{"month 13", "13/01/2025", civil.Date{}, true},
		{"feb 29 non leap", "02/29/2025", civil.Date{}, true},
		{"apr 31 month name", "Apr 31, 2025", civil.Date{}, true},
		{"unknown month", "Foo 3, 2025", civil.Date{}, true},
		{"garbage", "yesterday", civil.Date{}, true},
		{"empty", "", civil.Date{}, true},
		{"nil", nil, civil.Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("ParseDate(%v) error = %v, want ErrInvalidDate", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%v) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// Round-tripping MM/DD/YYYY is the identity exactly for calendar-valid dates.
func TestParseDate_SlashRoundTrip(t *testing.T) {
	for _, year := range []int{2023, 2024} {
		for month := 1; month <= 12; month++ {
			for day := 1; day <= 31; day++ {
				in := FormatSlashDate(civil.Date{Year: year, Month: time.Month(month), Day: day})
				valid := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Day() == day

				got, err := ParseDate(in)
				if !valid {
					if err == nil {
						t.Errorf("ParseDate(%q) accepted an invalid calendar date", in)
					}
					continue
				}
				if err != nil {
					t.Errorf("ParseDate(%q) unexpected error: %v", in, err)
					continue
				}
				if out := FormatSlashDate(got); out != in {
					t.Errorf("round trip %q -> %q", in, out)
				}
			}
		}
	}
}
