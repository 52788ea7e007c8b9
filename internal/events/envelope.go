// Package events publishes conversation assignment changes to downstream
// consumers.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/inboxd/internal/models"
)

// Producer identifies this service in event metadata.
const Producer = "inboxd"

// Kind is the kind of assignment change.
type Kind string

const (
	Allocated   Kind = "allocated"
	Claimed     Kind = "claimed"
	Resolved    Kind = "resolved"
	Deallocated Kind = "deallocated"
	Reassigned  Kind = "reassigned"
	Reclaimed   Kind = "reclaimed"
	Moved       Kind = "moved"
)

// RoutingKey returns the topic routing key for k.
func (k Kind) RoutingKey() string {
	return "conversation." + string(k)
}

// Type returns the versioned event name for k.
func (k Kind) Type() string {
	return k.RoutingKey() + ".v1"
}

type Meta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Assignment is the payload of every conversation event.
type Assignment struct {
	ConversationID     string                   `json:"conversation_id"`
	TenantID           string                   `json:"tenant_id"`
	InboxID            string                   `json:"inbox_id"`
	State              models.ConversationState `json:"state"`
	OperatorID         string                   `json:"operator_id,omitempty"`
	PreviousOperatorID string                   `json:"previous_operator_id,omitempty"`
	PreviousInboxID    string                   `json:"previous_inbox_id,omitempty"`
	ActorID            string                   `json:"actor_id,omitempty"`
	PriorityScore      float64                  `json:"priority_score"`
}

// NewAssignment builds the envelope for a committed change to c. prev is
// the conversation as it was before the change and may be nil.
func NewAssignment(kind Kind, c *models.Conversation, prev *models.Conversation, actorID string, now time.Time) Envelope {
	a := Assignment{
		ConversationID: c.ID,
		TenantID:       c.TenantID,
		InboxID:        c.InboxID,
		State:          c.State,
		ActorID:        actorID,
		PriorityScore:  c.PriorityScore,
	}
	if c.AssignedOperatorID != nil {
		a.OperatorID = *c.AssignedOperatorID
	}
	if prev != nil {
		if prev.AssignedOperatorID != nil {
			a.PreviousOperatorID = *prev.AssignedOperatorID
		}
		if prev.InboxID != c.InboxID {
			a.PreviousInboxID = prev.InboxID
		}
	}
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Type:     kind.Type(),
			Producer: Producer,
			Time:     now.UTC(),
		},
		Data: a,
	}
}
