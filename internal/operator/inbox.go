package operator

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	inboxdb "github.com/zulandar/inboxd/internal/db"
	"github.com/zulandar/inboxd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetOrCreateInbox returns the tenant's inbox for phone, creating it with
// displayName if it does not exist yet.
func GetOrCreateInbox(db *gorm.DB, tenantID, phone, displayName string) (*models.Inbox, error) {
	tenantID, err := models.CleanID("tenant_id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}
	if phone, err = models.CleanID("phone_number", phone); err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}
	if displayName == "" {
		displayName = phone
	}

	var inbox models.Inbox
	err = db.Where("tenant_id = ? AND phone_number = ?", tenantID, phone).First(&inbox).Error
	if err == nil {
		return &inbox, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("operator: lookup inbox %s: %w", phone, err)
	}

	id, err := inboxdb.UniqueID(db, &models.Inbox{}, "inbox")
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}
	now := time.Now()
	inbox = models.Inbox{
		ID:          id,
		TenantID:    tenantID,
		PhoneNumber: phone,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&inbox).Error; err != nil {
		// Lost a race with another creator; use theirs.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Inbox
			if err := db.Where("tenant_id = ? AND phone_number = ?", tenantID, phone).First(&existing).Error; err != nil {
				return nil, fmt.Errorf("operator: reload inbox %s: %w", phone, err)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("operator: create inbox %s: %w", phone, err)
	}
	return &inbox, nil
}

// GetInbox retrieves an inbox by ID.
func GetInbox(db *gorm.DB, id string) (*models.Inbox, error) {
	var inbox models.Inbox
	if err := db.Where("id = ?", id).First(&inbox).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operator: inbox %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("operator: get inbox %s: %w", id, err)
	}
	return &inbox, nil
}

// Subscribe records that operatorID works inboxID. Subscribing twice is a
// no-op.
func Subscribe(tx *gorm.DB, operatorID, inboxID string) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}, {Name: "inbox_id"}},
		DoNothing: true,
	}).Create(&models.OperatorInboxSubscription{
		ID:         uuid.NewString(),
		OperatorID: operatorID,
		InboxID:    inboxID,
		CreatedAt:  time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("operator: subscribe %s to %s: %w", operatorID, inboxID, err)
	}
	return nil
}

// Subscribed reports whether operatorID is subscribed to inboxID.
func Subscribed(db *gorm.DB, operatorID, inboxID string) (bool, error) {
	var count int64
	if err := db.Model(&models.OperatorInboxSubscription{}).
		Where("operator_id = ? AND inbox_id = ?", operatorID, inboxID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("operator: check subscription: %w", err)
	}
	return count > 0, nil
}

// Inboxes lists the inboxes operatorID is subscribed to.
func Inboxes(db *gorm.DB, operatorID string) ([]models.Inbox, error) {
	var out []models.Inbox
	err := db.Joins("JOIN operator_inbox_subscriptions s ON s.inbox_id = inboxes.id").
		Where("s.operator_id = ?", operatorID).
		Order("inboxes.phone_number").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("operator: inboxes for %s: %w", operatorID, err)
	}
	return out, nil
}
