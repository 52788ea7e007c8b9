// Package operator manages operators, their availability records, inboxes
// and inbox subscriptions.
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

// Create registers an operator in tenantID with an OFFLINE status record.
func Create(db *gorm.DB, tenantID string, role models.OperatorRole) (*models.Operator, error) {
	tenantID, err := models.CleanID("tenant_id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("operator: %w", err)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("operator: invalid role %q", role)
	}

	var op models.Operator
	err = db.Transaction(func(tx *gorm.DB) error {
		id, err := inboxdb.UniqueID(tx, &models.Operator{}, "op")
		if err != nil {
			return err
		}
		now := time.Now()
		op = models.Operator{ID: id, TenantID: tenantID, Role: role, CreatedAt: now}
		if err := tx.Create(&op).Error; err != nil {
			return err
		}
		return tx.Create(&models.OperatorStatus{
			ID:                 uuid.NewString(),
			OperatorID:         id,
			Status:             models.Offline,
			LastStatusChangeAt: now,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("operator: create: %w", err)
	}
	return &op, nil
}

// Get retrieves an operator by ID.
func Get(db *gorm.DB, id string) (*models.Operator, error) {
	var op models.Operator
	if err := db.Where("id = ?", id).First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operator: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("operator: get %s: %w", id, err)
	}
	return &op, nil
}

// Status returns the availability record for operatorID.
func Status(db *gorm.DB, operatorID string) (*models.OperatorStatus, error) {
	var st models.OperatorStatus
	if err := db.Where("operator_id = ?", operatorID).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operator: status %s: %w", operatorID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("operator: status %s: %w", operatorID, err)
	}
	return &st, nil
}

// Availability returns the operator's status, or AvailabilityUnknown when
// no record exists.
func Availability(db *gorm.DB, operatorID string) (models.Availability, error) {
	st, err := Status(db, operatorID)
	if errors.Is(err, models.ErrNotFound) {
		return models.AvailabilityUnknown, nil
	}
	if err != nil {
		return "", err
	}
	return st.Status, nil
}

// SetStatus writes the operator's availability, creating the record if it
// is missing.
func SetStatus(tx *gorm.DB, operatorID string, status models.Availability, now time.Time) error {
	if status != models.Available && status != models.Offline {
		return fmt.Errorf("operator: cannot store availability %q", status)
	}
	row := models.OperatorStatus{
		ID:                 uuid.NewString(),
		OperatorID:         operatorID,
		Status:             status,
		LastStatusChangeAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_status_change_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("operator: set status %s: %w", operatorID, err)
	}
	return nil
}
