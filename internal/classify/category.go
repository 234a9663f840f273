package classify

import "strings"

// Uncategorized is the category used for fallback and rule classifications.
const Uncategorized = "Uncategorized"

// Categories is the canonical display vocabulary.
var Categories = []string{
	"Advertising & Marketing",
	"Meals",
	"Travel",
	"Vehicle & Fuel",
	"Software & Subscriptions",
	"Office Supplies",
	"Equipment",
	"Professional Services",
	"Education",
	"Utilities & Phone",
	"Rent & Lease",
	"Insurance",
	"Bank & Processing Fees",
	"Shipping & Postage",
	"Contract Labor",
	"Personal",
	Uncategorized,
}

// synonyms are matched as substrings of the lowercased model category, in
// order, so more specific phrases come first.
var synonyms = []struct {
	match     string
	canonical string
}{
	{"advertis", "Advertising & Marketing"},
	{"marketing", "Advertising & Marketing"},
	{"promotion", "Advertising & Marketing"},
	{"meal", "Meals"},
	{"dining", "Meals"},
	{"restaurant", "Meals"},
	{"food", "Meals"},
	{"coffee", "Meals"},
	{"entertainment", "Meals"},
	{"fuel", "Vehicle & Fuel"},
	{"gas station", "Vehicle & Fuel"},
	{"vehicle", "Vehicle & Fuel"},
	{"automotive", "Vehicle & Fuel"},
	{"car ", "Vehicle & Fuel"},
	{"parking", "Vehicle & Fuel"},
	{"toll", "Vehicle & Fuel"},
	{"mileage", "Vehicle & Fuel"},
	{"travel", "Travel"},
	{"airfare", "Travel"},
	{"flight", "Travel"},
	{"lodging", "Travel"},
	{"hotel", "Travel"},
	{"transportation", "Travel"},
	{"rideshare", "Travel"},
	{"software", "Software & Subscriptions"},
	{"subscription", "Software & Subscriptions"},
	{"saas", "Software & Subscriptions"},
	{"cloud", "Software & Subscriptions"},
	{"hosting", "Software & Subscriptions"},
	{"office supp", "Office Supplies"},
	{"supplies", "Office Supplies"},
	{"stationery", "Office Supplies"},
	{"equipment", "Equipment"},
	{"hardware", "Equipment"},
	{"computer", "Equipment"},
	{"electronics", "Equipment"},
	{"legal", "Professional Services"},
	{"accounting", "Professional Services"},
	{"professional", "Professional Services"},
	{"consult", "Professional Services"},
	{"education", "Education"},
	{"training", "Education"},
	{"course", "Education"},
	{"books", "Education"},
	{"utilit", "Utilities & Phone"},
	{"phone", "Utilities & Phone"},
	{"internet", "Utilities & Phone"},
	{"telecom", "Utilities & Phone"},
	{"rent", "Rent & Lease"},
	{"lease", "Rent & Lease"},
	{"coworking", "Rent & Lease"},
	{"insurance", "Insurance"},
	{"bank", "Bank & Processing Fees"},
	{"fee", "Bank & Processing Fees"},
	{"interest", "Bank & Processing Fees"},
	{"processing", "Bank & Processing Fees"},
	{"shipping", "Shipping & Postage"},
	{"postage", "Shipping & Postage"},
	{"courier", "Shipping & Postage"},
	{"contract", "Contract Labor"},
	{"freelance", "Contract Labor"},
	{"labor", "Contract Labor"},
	{"personal", "Personal"},
	{"groceries", "Personal"},
	{"grocery", "Personal"},
	{"clothing", "Personal"},
	{"shopping", "Personal"},
}

// CanonicalCategory maps a raw category onto the display vocabulary.
// Anything unrecognized becomes Uncategorized.
func CanonicalCategory(raw string) string {
	s := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if s == "" {
		return Uncategorized
	}
	for _, c := range Categories {
		if strings.ToLower(c) == s {
			return c
		}
	}
	// Pad so word-ending matches such as "car " see the last word.
	padded := s + " "
	for _, syn := range synonyms {
		if strings.Contains(padded, syn.match) {
			return syn.canonical
		}
	}
	return Uncategorized
}
