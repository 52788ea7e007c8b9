package models

import "time"

// Operator is a tenant-scoped agent who works conversations. Role and
// TenantID never change after creation.
type Operator struct {
	ID        string       `gorm:"primaryKey;size:32"`
	TenantID  string       `gorm:"size:36;not null;index"`
	Role      OperatorRole `gorm:"size:16;not null"`
	CreatedAt time.Time
}

// OperatorStatus tracks an operator's availability separately from the
// operator record.
type OperatorStatus struct {
	ID                 string       `gorm:"primaryKey;size:36"`
	OperatorID         string       `gorm:"size:32;not null;uniqueIndex"`
	Status             Availability `gorm:"size:16;not null"`
	LastStatusChangeAt time.Time
}

// Inbox is a routing endpoint, usually a phone number.
type Inbox struct {
	ID          string `gorm:"primaryKey;size:32"`
	TenantID    string `gorm:"size:36;not null;uniqueIndex:uq_tenant_phone,priority:1"`
	PhoneNumber string `gorm:"size:32;not null;uniqueIndex:uq_tenant_phone,priority:2"`
	DisplayName string `gorm:"size:128;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OperatorInboxSubscription records that an operator works an inbox.
type OperatorInboxSubscription struct {
	ID         string `gorm:"primaryKey;size:36"`
	OperatorID string `gorm:"size:32;not null;uniqueIndex:uq_operator_inbox,priority:1"`
	InboxID    string `gorm:"size:32;not null;uniqueIndex:uq_operator_inbox,priority:2"`
	CreatedAt  time.Time
}
