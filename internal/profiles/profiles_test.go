package profiles

import (
	"errors"
	"strings"
	"testing"
)

func TestDefault_Lookup(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	tests := []struct {
		in      string
		wantKey string
		wantOK  bool
	}{
		{"freelance_software", "freelance_software", true},
		{"  Software Developer ", "freelance_software", true},
		{"Uber   driver", "rideshare_driver", true},
		{"astronaut", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, ok := r.Lookup(tt.in)
			if ok != tt.wantOK || p.Key != tt.wantKey {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.in, p.Key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestRegistry_IsCanonical(t *testing.T) {
	r, _ := Default()
	if !r.IsCanonical("restaurant") {
		t.Error("restaurant should be canonical")
	}
	if r.IsCanonical("cafe") {
		t.Error("aliases are not canonical keys")
	}
}

func TestRegistry_Reload(t *testing.T) {
	r, _ := Default()

	err := r.Reload([]byte("profiles:\n  - key: dentist\n    aliases: [dental office]\n"))
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := r.Keys(); len(got) != 1 || got[0] != "dentist" {
		t.Errorf("Keys = %v", got)
	}
	if _, ok := r.Lookup("dental office"); !ok {
		t.Error("alias lookup failed after reload")
	}

	if err := r.Reload([]byte("profiles: []\n")); !errors.Is(err, ErrNoProfiles) {
		t.Errorf("Reload(empty) error = %v", err)
	}
	if err := r.Reload([]byte("profiles:\n  - key: a\n  - key: A\n")); err == nil {
		t.Error("expected duplicate key error")
	}
	if !r.IsCanonical("dentist") {
		t.Error("failed reload replaced previous contents")
	}
}

func TestProfile_PromptContext(t *testing.T) {
	p := Profile{
		Key:                "rideshare_driver",
		PrimaryActivities:  []string{"Driving"},
		GrayAreas:          []string{"Meals"},
		OperationalContext: "Mixed use vehicle.",
	}
	got := p.PromptContext()
	for _, want := range []string{"rideshare driver", "- Driving", "Gray areas", "- Meals", "Mixed use vehicle."} {
		if !strings.Contains(got, want) {
			t.Errorf("PromptContext missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Ordinary") {
		t.Error("empty sections should be omitted")
	}
}
