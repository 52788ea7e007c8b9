package db

import (
	"fmt"

	"github.com/zulandar/inboxd/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model owned by inboxd.
func AllModels() []interface{} {
	return []interface{}{
		&models.Inbox{},
		&models.Operator{},
		&models.OperatorStatus{},
		&models.OperatorInboxSubscription{},
		&models.Conversation{},
		&models.Label{},
		&models.ConversationLabel{},
		&models.GracePeriodAssignment{},
		&models.TenantPolicy{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every inboxd table. Used by `db reset`.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}
