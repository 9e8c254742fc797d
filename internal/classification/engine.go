// Package classification decides which user reviews an incoming invoice,
// which farm it belongs to, and which business module it is filed under.
//
// The engine is a read-only decision function over two snapshots: an
// InvoiceView and a RuleSnapshot. It performs no I/O, holds no state and
// never mutates its inputs, so it can be called concurrently and re-run as a
// dry-run preview. Applying a Result (and writing the audit trail) is the
// caller's job.
package classification

import (
	"github.com/google/uuid"

	"backend/internal/model"
)

// RuleSnapshot is one consistent read of the active rule sets, one list per
// rule kind. Lists may arrive unsorted and may contain inactive rules.
type RuleSnapshot struct {
	UserRules   []model.AssignmentRule
	FarmRules   []model.AssignmentRule
	ModuleRules []model.AssignmentRule
}

// Result carries at most one decision per rule kind. A nil field means no
// rule of that kind matched; the caller decides the fallback (this system
// leaves the invoice unassigned and surfaces it for manual triage).
type Result struct {
	AssignedUserID *uuid.UUID
	TargetFarmID   *uuid.UUID
	TargetModule   *string
}

// Classify runs the three rule chains independently against one invoice.
// Kinds do not influence each other.
func Classify(view InvoiceView, snap RuleSnapshot) Result {
	var res Result

	if rule := Evaluate(snap.UserRules, view); rule != nil && rule.AssignedUserID != nil {
		id := *rule.AssignedUserID
		res.AssignedUserID = &id
	}
	if rule := Evaluate(snap.FarmRules, view); rule != nil && rule.TargetFarmID != nil {
		id := *rule.TargetFarmID
		res.TargetFarmID = &id
	}
	if rule := Evaluate(snap.ModuleRules, view); rule != nil && rule.TargetModule != nil {
		m := *rule.TargetModule
		res.TargetModule = &m
	}

	return res
}
