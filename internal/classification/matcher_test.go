package classification

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func view(seller, buyer, freeText string) InvoiceView {
	return InvoiceView{
		SellerName: seller,
		BuyerName:  buyer,
		FreeText:   freeText,
		Direction:  model.DirectionPurchase,
	}
}

func TestMatchesIncludeKeywords(t *testing.T) {
	v := view("Orlen Gaz Sp. z o.o.", "Ferma Kowalski", "propan delivery 2500L")

	tests := []struct {
		name string
		rule model.AssignmentRule
		want bool
	}{
		{"no keywords matches everything", model.AssignmentRule{}, true},
		{"single include hit", model.AssignmentRule{IncludeKeywords: []string{"gaz"}}, true},
		{"include is case-insensitive", model.AssignmentRule{IncludeKeywords: []string{"GAZ"}}, true},
		{"include matches free text", model.AssignmentRule{IncludeKeywords: []string{"propan"}}, true},
		{"include matches buyer name", model.AssignmentRule{IncludeKeywords: []string{"kowalski"}}, true},
		{"all includes must hit", model.AssignmentRule{IncludeKeywords: []string{"gaz", "propan"}}, true},
		{"one miss fails the rule", model.AssignmentRule{IncludeKeywords: []string{"gaz", "diesel"}}, false},
		{"substring match inside a word", model.AssignmentRule{IncludeKeywords: []string{"pan"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.rule, v))
		})
	}
}

func TestMatchesExcludeKeywords(t *testing.T) {
	v := view("Orlen Gaz Sp. z o.o.", "Ferma Kowalski", "propan delivery")

	tests := []struct {
		name string
		rule model.AssignmentRule
		want bool
	}{
		{"exclude hit vetoes", model.AssignmentRule{ExcludeKeywords: []string{"propan"}}, false},
		{"exclude is case-insensitive", model.AssignmentRule{ExcludeKeywords: []string{"PROPAN"}}, false},
		{"exclude miss passes", model.AssignmentRule{ExcludeKeywords: []string{"diesel"}}, true},
		{
			"exclude overrides include",
			model.AssignmentRule{IncludeKeywords: []string{"gaz"}, ExcludeKeywords: []string{"kowalski"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.rule, v))
		})
	}
}

func TestMatchesTaxEntityScope(t *testing.T) {
	entityID := uuid.New()
	otherID := uuid.New()

	scoped := model.AssignmentRule{TaxEntityID: &entityID}

	matching := view("Seller", "Buyer", "")
	matching.TaxEntityID = &entityID
	assert.True(t, Matches(scoped, matching))

	different := view("Seller", "Buyer", "")
	different.TaxEntityID = &otherID
	assert.False(t, Matches(scoped, different))

	// Invoice without a tax entity never matches a scoped rule
	unset := view("Seller", "Buyer", "")
	assert.False(t, Matches(scoped, unset))

	// Unscoped rule ignores the invoice's tax entity
	assert.True(t, Matches(model.AssignmentRule{}, different))
}

func TestMatchesDirectionScope(t *testing.T) {
	purchase := model.DirectionPurchase
	sales := model.DirectionSales

	v := view("Seller", "Buyer", "")
	v.Direction = model.DirectionSales

	assert.True(t, Matches(model.AssignmentRule{DirectionScope: &sales}, v))
	assert.False(t, Matches(model.AssignmentRule{DirectionScope: &purchase}, v))
	assert.True(t, Matches(model.AssignmentRule{}, v))
}

func TestSearchableTextConcatenatesFields(t *testing.T) {
	v := view("ABC", "DEF", "GHI")
	assert.Equal(t, "abc def ghi", v.SearchableText())

	// Keyword spanning two fields only matches through the separator
	assert.True(t, Matches(model.AssignmentRule{IncludeKeywords: []string{"abc def"}}, v))
	assert.False(t, Matches(model.AssignmentRule{IncludeKeywords: []string{"abcdef"}}, v))
}
