package classification

import (
	"sort"

	"backend/internal/model"
)

// Evaluate walks the active rules of one kind in priority order and returns
// the first rule matching the invoice, or nil when no rule decides.
//
// Ordering is (priority asc, created_at asc, id asc); the repository may
// return rules in any order, and duplicate priorities from racing rule
// creation resolve to the earlier-created rule. The input slice is never
// mutated; the result for a fixed (rules, view) pair is deterministic.
func Evaluate(rules []model.AssignmentRule, view InvoiceView) *model.AssignmentRule {
	active := make([]model.AssignmentRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID.String() < active[j].ID.String()
	})

	for i := range active {
		if Matches(active[i], view) {
			return &active[i]
		}
	}
	return nil
}
