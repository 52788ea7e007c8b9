package allocation

import (
	"context"
	"fmt"

	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/events"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
)

// Claim assigns a specific QUEUED conversation to operatorID. The operator
// must be AVAILABLE and in the conversation's tenant.
func (e *Engine) Claim(ctx context.Context, conversationID, operatorID string) (*models.Conversation, error) {
	ids, err := cleanIDs("conversation_id", conversationID, "operator_id", operatorID)
	if err != nil {
		return nil, err
	}
	conversationID, operatorID = ids[0], ids[1]

	now := e.now()
	var out, prev *models.Conversation
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := operator.Get(tx, operatorID)
		if err != nil {
			return err
		}
		conv, err := conversation.Get(tx, conversationID)
		if err != nil {
			return err
		}
		if conv.State != models.StateQueued {
			return fmt.Errorf("conversation %s is %s: %w", conv.ID, conv.State, models.ErrNotEligible)
		}
		if op.TenantID != conv.TenantID {
			return fmt.Errorf("operator %s is not in tenant %s: %w", op.ID, conv.TenantID, models.ErrNotEligible)
		}
		if _, err := availableOperator(tx, op.ID); err != nil {
			return err
		}

		if err := conversation.Apply(tx, conv.ID, conversation.Change{
			Op:         conversation.OpClaim,
			OperatorID: op.ID,
		}, now); err != nil {
			return err
		}
		if err := operator.Subscribe(tx, op.ID, conv.InboxID); err != nil {
			return err
		}
		prev = conv
		out, err = conversation.Get(tx, conv.ID)
		return err
	})
	e.done(ctx, string(conversation.OpClaim), conversationID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: claim %s for %s: %w", conversationID, operatorID, err)
	}
	e.committed(ctx, events.Claimed, out, prev, operatorID)
	return out, nil
}

// Resolve closes an ALLOCATED conversation. The caller must be the assignee
// or a manager or admin of the conversation's tenant; otherwise the error
// matches models.ErrForbidden. Resolving a RESOLVED conversation returns it
// unchanged.
func (e *Engine) Resolve(ctx context.Context, conversationID, operatorID string) (*models.Conversation, error) {
	ids, err := cleanIDs("conversation_id", conversationID, "operator_id", operatorID)
	if err != nil {
		return nil, err
	}
	conversationID, operatorID = ids[0], ids[1]

	now := e.now()
	var out, prev *models.Conversation
	already := false
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := operator.Get(tx, operatorID)
		if err != nil {
			return err
		}
		conv, err := conversation.Get(tx, conversationID)
		if err != nil {
			return err
		}
		if conv.State == models.StateResolved {
			out, already = conv, true
			return nil
		}
		if err := CanResolve(op, conv).Err(); err != nil {
			return err
		}
		if err := conversation.Apply(tx, conv.ID, conversation.Change{Op: conversation.OpResolve}, now); err != nil {
			return err
		}
		prev = conv
		out, err = conversation.Get(tx, conv.ID)
		return err
	})
	e.done(ctx, string(conversation.OpResolve), conversationID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: resolve %s by %s: %w", conversationID, operatorID, err)
	}
	if already {
		e.log.Debug("conversation already resolved", "conversation", out.ID)
		return out, nil
	}
	e.committed(ctx, events.Resolved, out, prev, operatorID)
	return out, nil
}

// Deallocate returns an ALLOCATED conversation to the queue. It performs
// no authorization; use DeallocateAs on behalf of an operator.
func (e *Engine) Deallocate(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return e.deallocate(ctx, conversationID, "")
}

// DeallocateAs is Deallocate performed by callerID, who must manage the
// conversation's tenant.
func (e *Engine) DeallocateAs(ctx context.Context, conversationID, callerID string) (*models.Conversation, error) {
	ids, err := cleanIDs("caller_id", callerID)
	if err != nil {
		return nil, err
	}
	return e.deallocate(ctx, conversationID, ids[0])
}

func (e *Engine) deallocate(ctx context.Context, conversationID, callerID string) (*models.Conversation, error) {
	ids, err := cleanIDs("conversation_id", conversationID)
	if err != nil {
		return nil, err
	}
	conversationID = ids[0]

	now := e.now()
	var out, prev *models.Conversation
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := conversation.Get(tx, conversationID)
		if err != nil {
			return err
		}
		if callerID != "" {
			caller, err := operator.Get(tx, callerID)
			if err != nil {
				return err
			}
			if err := CanManage(caller, conv.TenantID).Err(); err != nil {
				return err
			}
		}
		if err := conversation.Apply(tx, conv.ID, conversation.Change{Op: conversation.OpDeallocate}, now); err != nil {
			return err
		}
		prev = conv
		out, err = conversation.Get(tx, conv.ID)
		return err
	})
	e.done(ctx, string(conversation.OpDeallocate), conversationID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: deallocate %s: %w", conversationID, err)
	}
	e.committed(ctx, events.Deallocated, out, prev, callerID)
	return out, nil
}

// Reassign gives a QUEUED or RESOLVED conversation to targetID. An
// ALLOCATED conversation must be deallocated first. The caller must manage
// the conversation's tenant and the target must belong to it. The target's
// availability is not checked and no inbox subscription is created.
func (e *Engine) Reassign(ctx context.Context, conversationID, callerID, targetID string) (*models.Conversation, error) {
	ids, err := cleanIDs("conversation_id", conversationID, "caller_id", callerID, "target_operator_id", targetID)
	if err != nil {
		return nil, err
	}
	conversationID, callerID, targetID = ids[0], ids[1], ids[2]

	now := e.now()
	var out, prev *models.Conversation
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := operator.Get(tx, callerID)
		if err != nil {
			return err
		}
		conv, err := conversation.Get(tx, conversationID)
		if err != nil {
			return err
		}
		if err := CanManage(caller, conv.TenantID).Err(); err != nil {
			return err
		}
		if !conversation.CanTransition(conversation.OpReassign, conv.State) {
			return fmt.Errorf("conversation %s is %s and must be deallocated first: %w",
				conv.ID, conv.State, models.ErrNotEligible)
		}
		target, err := operator.Get(tx, targetID)
		if err != nil {
			return err
		}
		if target.TenantID != conv.TenantID {
			return fmt.Errorf("operator %s is not in tenant %s: %w", target.ID, conv.TenantID, models.ErrNotEligible)
		}
		if err := conversation.Apply(tx, conv.ID, conversation.Change{
			Op:         conversation.OpReassign,
			OperatorID: target.ID,
		}, now); err != nil {
			return err
		}
		prev = conv
		out, err = conversation.Get(tx, conv.ID)
		return err
	})
	e.done(ctx, string(conversation.OpReassign), conversationID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: reassign %s to %s: %w", conversationID, targetID, err)
	}
	e.committed(ctx, events.Reassigned, out, prev, callerID)
	return out, nil
}

// MoveInbox moves a conversation to another inbox of the same tenant. State
// and assignment are unchanged.
func (e *Engine) MoveInbox(ctx context.Context, conversationID, callerID, inboxID string) (*models.Conversation, error) {
	ids, err := cleanIDs("conversation_id", conversationID, "caller_id", callerID, "inbox_id", inboxID)
	if err != nil {
		return nil, err
	}
	conversationID, callerID, inboxID = ids[0], ids[1], ids[2]

	now := e.now()
	var out, prev *models.Conversation
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		caller, err := operator.Get(tx, callerID)
		if err != nil {
			return err
		}
		conv, err := conversation.Get(tx, conversationID)
		if err != nil {
			return err
		}
		if err := CanManage(caller, conv.TenantID).Err(); err != nil {
			return err
		}
		inbox, err := operator.GetInbox(tx, inboxID)
		if err != nil {
			return err
		}
		if inbox.TenantID != conv.TenantID {
			return fmt.Errorf("inbox %s is not in tenant %s: %w", inbox.ID, conv.TenantID, models.ErrNotEligible)
		}
		if err := conversation.MoveInbox(tx, conv.ID, inbox.ID, now); err != nil {
			return err
		}
		prev = conv
		out, err = conversation.Get(tx, conv.ID)
		return err
	})
	e.done(ctx, opMoveInbox, conversationID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: move %s to inbox %s: %w", conversationID, inboxID, err)
	}
	e.committed(ctx, events.Moved, out, prev, callerID)
	return out, nil
}
