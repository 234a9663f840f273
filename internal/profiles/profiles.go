// Package profiles holds the business-profile registry used to enrich
// classification prompts and to gate analysis requests.
package profiles

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// ErrNoProfiles is returned when a profile document defines nothing usable.
var ErrNoProfiles = errors.New("no profiles defined")

// Profile is the prompt context for one kind of business.
type Profile struct {
	Key                string   `yaml:"key"`
	Aliases            []string `yaml:"aliases"`
	PrimaryActivities  []string `yaml:"primary_activities"`
	OrdinaryExpenses   []string `yaml:"ordinary_expenses"`
	GrayAreas          []string `yaml:"gray_areas"`
	OperationalContext string   `yaml:"operational_context"`
}

type document struct {
	Profiles []Profile `yaml:"profiles"`
}

// Registry resolves free-text business types to profiles.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[string]Profile
	byAlias map[string]string
}

// Default returns a registry loaded from the embedded profile document.
func Default() (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(defaultProfiles); err != nil {
		return nil, fmt.Errorf("Default: %w", err)
	}
	return r, nil
}

// Load reads profiles from path, or the embedded document when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: read %s: %w", path, err)
	}
	r := &Registry{}
	if err := r.Reload(data); err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}
	return r, nil
}

// Reload replaces the registry contents. On error the previous contents
// are kept.
func (r *Registry) Reload(data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}

	byKey := make(map[string]Profile, len(doc.Profiles))
	byAlias := make(map[string]string)
	for _, p := range doc.Profiles {
		key := normalize(p.Key)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			return fmt.Errorf("duplicate profile key %q", key)
		}
		p.Key = key
		byKey[key] = p
		for _, alias := range p.Aliases {
			if a := normalize(alias); a != "" {
				byAlias[a] = key
			}
		}
	}
	if len(byKey) == 0 {
		return ErrNoProfiles
	}

	r.mu.Lock()
	r.byKey = byKey
	r.byAlias = byAlias
	r.mu.Unlock()
	return nil
}

// Lookup resolves a free-text business type by canonical key or alias.
func (r *Registry) Lookup(businessType string) (Profile, bool) {
	needle := normalize(businessType)
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byKey[needle]; ok {
		return p, true
	}
	if key, ok := r.byAlias[needle]; ok {
		return r.byKey[key], true
	}
	return Profile{}, false
}

// IsCanonical reports whether key names a profile directly.
func (r *Registry) IsCanonical(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[normalize(key)]
	return ok
}

// Keys returns the canonical keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PromptContext renders the profile as prompt lines.
func (p Profile) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business profile: %s\n", strings.ReplaceAll(p.Key, "_", " "))
	writeList(&b, "Primary activities", p.PrimaryActivities)
	writeList(&b, "Ordinary and necessary expenses", p.OrdinaryExpenses)
	writeList(&b, "Gray areas (non-deductible unless clearly business related)", p.GrayAreas)
	if p.OperationalContext != "" {
		fmt.Fprintf(&b, "Operational context: %s\n", p.OperationalContext)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return s
}
