package classify

import (
	"fmt"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
	"google.golang.org/genai"
)

// Aggressiveness is the deduction posture requested by the user.
type Aggressiveness string

const (
	Conservative Aggressiveness = "conservative"
	Moderate     Aggressiveness = "moderate"
	Aggressive   Aggressiveness = "aggressive"
)

// ParseAggressiveness returns the level named by s, or Moderate.
func ParseAggressiveness(s string) Aggressiveness {
	switch a := Aggressiveness(strings.ToLower(strings.TrimSpace(s))); a {
	case Conservative, Moderate, Aggressive:
		return a
	}
	return Moderate
}

func (a Aggressiveness) posture() string {
	switch a {
	case Conservative:
		return "Be conservative. Mark an expense deductible only when the business purpose is obvious from the description alone."
	case Aggressive:
		return "Be assertive. Mark an expense deductible when a plausible ordinary and necessary business purpose exists for this business, while still following the rules below."
	default:
		return "Take a balanced view. Mark an expense deductible when it is typical for this business and the description supports a business purpose."
	}
}

const deductionRules = `DEDUCTION RULES:
1. Commuting between home and a regular place of work is personal, never deductible.
2. Meals are non-deductible unless the description clearly indicates business travel or a client meeting.
3. Gray-area expenses default to non-deductible absent an explicit link to the business.
4. Groceries, clothing, personal care and household purchases are Personal and not deductible.
5. Loan or card payments and transfers are not expenses; use "Uncategorized" and not deductible.
6. If unsure, prefer "Uncategorized" and not deductible.`

// responseSchema constrains the model to the classification answer.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category":      {Type: genai.TypeString, Description: "One of the allowed categories."},
		"is_deductible": {Type: genai.TypeBoolean},
		"reasoning":     {Type: genai.TypeString, Description: "One or two sentences."},
	},
	Required: []string{"category", "is_deductible", "reasoning"},
}

func buildPrompt(req Request, profile *profiles.Profile, tx domain.Transaction) string {
	var b strings.Builder
	b.WriteString("You are a tax assistant classifying a single business card transaction for a US small business owner.\n\n")

	if profile != nil {
		b.WriteString(profile.PromptContext())
	} else {
		fmt.Fprintf(&b, "Business type: %s\n", req.BusinessType)
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		fmt.Fprintf(&b, "Owner note: %s\n", note)
	}
	level := ParseAggressiveness(string(req.Aggressiveness))
	fmt.Fprintf(&b, "\nPosture (%s): %s\n\n", level, level.posture())
	b.WriteString(deductionRules)
	b.WriteString("\n\nAllowed categories:\n")
	for _, c := range Categories {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nTransaction:\n")
	fmt.Fprintf(&b, "Date: %s\n", tx.Date)
	fmt.Fprintf(&b, "Institution: %s\n", tx.Institution)
	fmt.Fprintf(&b, "Description: %s\n", tx.Description)
	fmt.Fprintf(&b, "Amount: $%s\n", tx.Amount)

	b.WriteString("\nReturn ONLY a JSON object with keys \"category\" (string), \"is_deductible\" (boolean) and \"reasoning\" (string).\n")
	return b.String()
}
