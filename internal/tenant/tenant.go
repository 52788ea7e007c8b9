// Package tenant stores per-tenant priority weights.
package tenant

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/priority"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WeightsUpdate is a partial update; nil fields keep their prior value.
type WeightsUpdate struct {
	Alpha *float64
	Beta  *float64
}

// Empty reports whether the update changes nothing.
func (u WeightsUpdate) Empty() bool {
	return u.Alpha == nil && u.Beta == nil
}

// GetWeights returns the weights configured for tenantID, or
// priority.DefaultWeights when the tenant has no policy.
func GetWeights(db *gorm.DB, tenantID string) (priority.Weights, error) {
	var p models.TenantPolicy
	err := db.Where("tenant_id = ?", tenantID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return priority.DefaultWeights, nil
	}
	if err != nil {
		return priority.Weights{}, fmt.Errorf("tenant: get weights %s: %w", tenantID, err)
	}
	return priority.Weights{Alpha: p.Alpha, Beta: p.Beta}, nil
}

// UpsertWeights creates the tenant's policy if absent, then applies the
// supplied fields. Values are not range-checked.
func UpsertWeights(db *gorm.DB, tenantID string, u WeightsUpdate) (*models.TenantPolicy, error) {
	tenantID, err := models.CleanID("tenant_id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: %w", err)
	}

	now := time.Now()
	row := models.TenantPolicy{
		TenantID:  tenantID,
		Alpha:     priority.DefaultWeights.Alpha,
		Beta:      priority.DefaultWeights.Beta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cols := []string{"updated_at"}
	if u.Alpha != nil {
		row.Alpha = *u.Alpha
		cols = append(cols, "alpha")
	}
	if u.Beta != nil {
		row.Beta = *u.Beta
		cols = append(cols, "beta")
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}
	if u.Empty() {
		onConflict = clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}
	}

	var out models.TenantPolicy
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(onConflict).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ?", tenantID).First(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: upsert weights %s: %w", tenantID, err)
	}
	return &out, nil
}
