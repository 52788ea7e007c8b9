package models

import "time"

// Conversation is one customer thread routed through one inbox.
type Conversation struct {
	ID                     string            `gorm:"primaryKey;size:36"`
	TenantID               string            `gorm:"size:36;not null;uniqueIndex:uq_conversation_ref,priority:1;index:idx_tenant_state_activity,priority:1"`
	InboxID                string            `gorm:"size:32;not null;uniqueIndex:uq_conversation_ref,priority:2;index:idx_inbox_state_priority,priority:1"`
	ExternalConversationID string            `gorm:"size:128;not null;uniqueIndex:uq_conversation_ref,priority:3"`
	CustomerPhoneNumber    string            `gorm:"size:32;not null;index"`
	State                  ConversationState `gorm:"size:16;not null;index:idx_tenant_state_activity,priority:2;index:idx_inbox_state_priority,priority:2"`
	AssignedOperatorID     *string           `gorm:"size:32;index"`
	LastMessageAt          time.Time         `gorm:"not null;index:idx_tenant_state_activity,priority:3"`
	MessageCount           int               `gorm:"not null;default:0"`
	PriorityScore          float64           `gorm:"not null;default:0;index:idx_inbox_state_priority,priority:3"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ResolvedAt             *time.Time
}

// AssignedTo reports whether the conversation is assigned to operatorID.
func (c *Conversation) AssignedTo(operatorID string) bool {
	return c.AssignedOperatorID != nil && *c.AssignedOperatorID == operatorID
}

// Label is a tenant-scoped tag defined on an inbox.
type Label struct {
	ID        string  `gorm:"primaryKey;size:36"`
	TenantID  string  `gorm:"size:36;not null;index"`
	InboxID   string  `gorm:"size:32;not null;index"`
	Name      string  `gorm:"size:128;not null"`
	Color     *string `gorm:"size:32"`
	CreatedBy string  `gorm:"size:32;not null"`
	CreatedAt time.Time
}

// ConversationLabel attaches a label to a conversation.
type ConversationLabel struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"size:36;not null;uniqueIndex:uq_conversation_label,priority:1"`
	LabelID        string `gorm:"size:36;not null;uniqueIndex:uq_conversation_label,priority:2;index"`
	CreatedAt      time.Time
}
