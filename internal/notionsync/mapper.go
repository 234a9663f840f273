package notionsync

import (
	"strconv"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the deductions database.
const (
	PropDescription = "Description"
	PropDedupKey    = "Dedup Key"
	PropUserID      = "User ID"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropInstitution = "Institution"
	PropCategory    = "Category"
	PropDeductible  = "Deductible"
	PropReasoning   = "Reasoning"
)

// notionTextLimit is the per-block rich text limit of the API.
const notionTextLimit = 2000

// TransactionToProperties converts a classified transaction to page properties.
func TransactionToProperties(tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{textBlock(tx.Description)},
		},
		PropDedupKey: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textBlock(tx.DedupKey)},
		},
		PropUserID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textBlock(tx.UserID)},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(tx.Date.Year, tx.Date.Month, tx.Date.Day, 0, 0, 0, 0, time.UTC))
					return &d
				}(),
			},
		},
		PropInstitution: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Institution)},
		},
	}

	if amount, err := strconv.ParseFloat(tx.Amount, 64); err == nil {
		props[PropAmount] = notionapi.NumberProperty{Number: amount}
	}
	if tx.Category != nil {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: *tx.Category},
		}
	}
	if tx.IsDeductible != nil {
		props[PropDeductible] = notionapi.CheckboxProperty{Checkbox: *tx.IsDeductible}
	}
	if tx.Reasoning != nil && *tx.Reasoning != "" {
		props[PropReasoning] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textBlock(*tx.Reasoning)},
		}
	}
	return props
}

func textBlock(s string) notionapi.RichText {
	if r := []rune(s); len(r) > notionTextLimit {
		s = string(r[:notionTextLimit])
	}
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

// richTextValue returns the plain text of a rich text property, read either
// from the API form (pointer) or a locally built value.
func richTextValue(page notionapi.Page, name string) string {
	var blocks []notionapi.RichText
	switch p := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		blocks = p.RichText
	case notionapi.RichTextProperty:
		blocks = p.RichText
	}
	if len(blocks) == 0 {
		return ""
	}
	if blocks[0].PlainText != "" {
		return blocks[0].PlainText
	}
	if blocks[0].Text != nil {
		return blocks[0].Text.Content
	}
	return ""
}
