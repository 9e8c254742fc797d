package classification

import (
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
)

// InvoiceView is the read-only snapshot of an invoice the engine matches
// against. It is rebuilt from the persisted invoice on every pass so the
// engine never sees half-updated state.
type InvoiceView struct {
	SellerName  string
	BuyerName   string
	FreeText    string // concatenated line item descriptions
	TaxEntityID *uuid.UUID
	Direction   string // model.DirectionPurchase or model.DirectionSales
}

// SearchableText returns the lowercased haystack keyword matching runs
// against. Plain case-fold, no stemming.
func (v InvoiceView) SearchableText() string {
	return strings.ToLower(v.SellerName + " " + v.BuyerName + " " + v.FreeText)
}

// Matches reports whether one rule applies to one invoice. Pure function of
// its inputs, safe for concurrent use.
//
// Include clause: every include keyword must occur as a case-insensitive
// substring of the searchable text; an empty set always passes. Exclude
// clause: no exclude keyword may occur. Scope clauses: when set, the rule's
// tax entity and direction must equal the invoice's.
func Matches(rule model.AssignmentRule, view InvoiceView) bool {
	if rule.TaxEntityID != nil {
		if view.TaxEntityID == nil || *view.TaxEntityID != *rule.TaxEntityID {
			return false
		}
	}
	if rule.DirectionScope != nil && *rule.DirectionScope != view.Direction {
		return false
	}

	text := view.SearchableText()
	for _, kw := range rule.IncludeKeywords {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	for _, kw := range rule.ExcludeKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}
