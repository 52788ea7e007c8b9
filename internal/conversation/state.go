// Package conversation owns the conversation lifecycle: legal state
// transitions, conditional state writes, message ingestion and lookups.
package conversation

import (
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/inboxd/internal/models"
	"gorm.io/gorm"
)

// Op names a lifecycle transition.
type Op string

const (
	OpAllocate   Op = "allocate"
	OpClaim      Op = "claim"
	OpDeallocate Op = "deallocate"
	OpReclaim    Op = "reclaim" // grace expiry
	OpResolve    Op = "resolve"
	OpReassign   Op = "reassign"
)

type rule struct {
	from []models.ConversationState
	to   models.ConversationState
}

// rules lists, for each transition, the states it may start from and the
// state it ends in. Resolve on a RESOLVED conversation is an idempotent
// no-op handled by the caller, not a transition.
var rules = map[Op]rule{
	OpAllocate:   {from: []models.ConversationState{models.StateQueued}, to: models.StateAllocated},
	OpClaim:      {from: []models.ConversationState{models.StateQueued}, to: models.StateAllocated},
	OpDeallocate: {from: []models.ConversationState{models.StateAllocated}, to: models.StateQueued},
	OpReclaim:    {from: []models.ConversationState{models.StateAllocated}, to: models.StateQueued},
	OpResolve:    {from: []models.ConversationState{models.StateAllocated}, to: models.StateResolved},
	OpReassign:   {from: []models.ConversationState{models.StateQueued, models.StateResolved}, to: models.StateAllocated},
}

// CanTransition reports whether op may be applied to a conversation in
// state from.
func CanTransition(op Op, from models.ConversationState) bool {
	r, ok := rules[op]
	return ok && slices.Contains(r.from, from)
}

// Target returns the state op ends in.
func Target(op Op) (models.ConversationState, bool) {
	r, ok := rules[op]
	return r.to, ok
}

// Change describes one conditional state write.
type Change struct {
	Op Op
	// OperatorID is the new assignee for allocate, claim and reassign.
	OperatorID string
	// Score, when set, is persisted alongside the transition.
	Score *float64
}

// Apply performs ch on conversation id as a single conditional UPDATE whose
// WHERE clause repeats the legal source states. If another writer moved the
// row first, zero rows match and Apply returns ErrNotEligible. Run it on
// the transaction that made the decision. Deallocate, resolve and reclaim
// also drop the conversation's grace entries, so a pending expiry never
// outlives the assignment it was created for.
func Apply(tx *gorm.DB, id string, ch Change, now time.Time) error {
	r, ok := rules[ch.Op]
	if !ok {
		return fmt.Errorf("conversation: unknown transition %q", ch.Op)
	}

	updates := map[string]interface{}{
		"state":      r.to,
		"updated_at": now,
	}
	q := tx.Model(&models.Conversation{}).Where("id = ? AND state IN ?", id, r.from)

	switch ch.Op {
	case OpAllocate, OpClaim, OpReassign:
		if ch.OperatorID == "" {
			return fmt.Errorf("conversation: %s requires an operator: %w", ch.Op, models.ErrInvalidID)
		}
		updates["assigned_operator_id"] = ch.OperatorID
		if ch.Op == OpReassign {
			updates["resolved_at"] = nil
		}
	case OpDeallocate, OpReclaim:
		updates["assigned_operator_id"] = nil
	case OpResolve:
		updates["resolved_at"] = now
	}
	if ch.Score != nil {
		updates["priority_score"] = *ch.Score
	}

	result := q.Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("conversation: %s %s: %w", ch.Op, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation: %s %s: %w", ch.Op, id, models.ErrNotEligible)
	}

	switch ch.Op {
	case OpDeallocate, OpResolve, OpReclaim:
		if err := tx.Where("conversation_id = ?", id).Delete(&models.GracePeriodAssignment{}).Error; err != nil {
			return fmt.Errorf("conversation: release grace entries for %s: %w", id, err)
		}
	}
	return nil
}

// MoveInbox points conversation id at inboxID without touching state or
// assignment.
func MoveInbox(tx *gorm.DB, id, inboxID string, now time.Time) error {
	result := tx.Model(&models.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"inbox_id":   inboxID,
		"updated_at": now,
	})
	if result.Error != nil {
		return fmt.Errorf("conversation: move %s to inbox %s: %w", id, inboxID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation: move %s: %w", id, models.ErrNotFound)
	}
	return nil
}
