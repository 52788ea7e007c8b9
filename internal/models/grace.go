package models

import "time"

// GracePeriodAssignment is a pending reclamation: the conversation will be
// returned to the queue at ExpiresAt unless the entry is removed first.
type GracePeriodAssignment struct {
	ID             string      `gorm:"primaryKey;size:36"`
	ConversationID string      `gorm:"size:36;not null;index"`
	OperatorID     string      `gorm:"size:32;not null;index"`
	ExpiresAt      time.Time   `gorm:"not null;index"`
	Reason         GraceReason `gorm:"size:16;not null"`
}
