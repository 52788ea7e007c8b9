package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/events"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
)

// AllocateNext assigns the best-ranked QUEUED conversation in the
// operator's tenant to operatorID. It returns models.ErrNothingAvailable
// when the queue is empty or the chosen conversation was taken by a
// concurrent caller; the ranking is not retried.
func (e *Engine) AllocateNext(ctx context.Context, operatorID string) (*models.Conversation, error) {
	ids, err := cleanIDs("operator_id", operatorID)
	if err != nil {
		return nil, err
	}
	operatorID = ids[0]

	now := e.now()
	var out, prev *models.Conversation
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := availableOperator(tx, operatorID)
		if err != nil {
			return err
		}
		cands, err := e.rank(tx, op.TenantID, now)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			return models.ErrNothingAvailable
		}

		best := cands[0]
		score := best.PriorityScore
		err = conversation.Apply(tx, best.ID, conversation.Change{
			Op:         conversation.OpAllocate,
			OperatorID: op.ID,
			Score:      &score,
		}, now)
		if errors.Is(err, models.ErrNotEligible) {
			return fmt.Errorf("%s taken concurrently: %w", best.ID, models.ErrNothingAvailable)
		}
		if err != nil {
			return err
		}
		if err := operator.Subscribe(tx, op.ID, best.InboxID); err != nil {
			return err
		}
		prev = &best
		out, err = conversation.Get(tx, best.ID)
		return err
	})
	e.done(ctx, string(conversation.OpAllocate), operatorID, err)
	if err != nil {
		return nil, fmt.Errorf("allocation: allocate for %s: %w", operatorID, err)
	}
	e.committed(ctx, events.Allocated, out, prev, operatorID)
	return out, nil
}

// Queue is the ranked view of a tenant's queue as seen by one operator.
type Queue struct {
	OperatorID    string
	TenantID      string
	Availability  models.Availability
	Conversations []models.Conversation
}

// ListQueued ranks the operator's tenant queue without allocating. The
// computed scores are written back so later reads agree with the ranking.
// An OFFLINE operator still gets the list; Availability reports their
// status, or UNKNOWN when they have no status record.
func (e *Engine) ListQueued(ctx context.Context, operatorID string) (*Queue, error) {
	ids, err := cleanIDs("operator_id", operatorID)
	if err != nil {
		return nil, err
	}
	operatorID = ids[0]

	var q Queue
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		op, err := operator.Get(tx, operatorID)
		if err != nil {
			return err
		}
		avail, err := operator.Availability(tx, operatorID)
		if err != nil {
			return err
		}
		cands, err := e.rank(tx, op.TenantID, e.now())
		if err != nil {
			return err
		}
		if err := conversation.SavePriorities(tx, cands); err != nil {
			return err
		}
		q = Queue{
			OperatorID:    op.ID,
			TenantID:      op.TenantID,
			Availability:  avail,
			Conversations: cands,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocation: list queued for %s: %w", operatorID, err)
	}
	return &q, nil
}
