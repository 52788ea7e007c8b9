// Package label manages inbox labels and their attachment to
// conversations. Every operation requires an admin of the owning tenant.
package label

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/inboxd/internal/allocation"
	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Update is a partial label update; nil fields are left alone.
type Update struct {
	Name  *string
	Color *string
}

func requireAdmin(tx *gorm.DB, callerID, tenantID string) error {
	callerID, err := models.CleanID("operator_id", callerID)
	if err != nil {
		return err
	}
	caller, err := operator.Get(tx, callerID)
	if err != nil {
		return err
	}
	return allocation.CanAdminister(caller, tenantID).Err()
}

func get(tx *gorm.DB, id string) (*models.Label, error) {
	var l models.Label
	if err := tx.Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("label %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &l, nil
}

// Create adds a label to inboxID.
func Create(db *gorm.DB, callerID, inboxID, name string, color *string) (*models.Label, error) {
	var err error
	if callerID, err = models.CleanID("operator_id", callerID); err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	if name, err = models.CleanID("name", name); err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}

	var out models.Label
	err = db.Transaction(func(tx *gorm.DB) error {
		inbox, err := operator.GetInbox(tx, strings.TrimSpace(inboxID))
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, callerID, inbox.TenantID); err != nil {
			return err
		}
		out = models.Label{
			ID:        uuid.NewString(),
			TenantID:  inbox.TenantID,
			InboxID:   inbox.ID,
			Name:      name,
			Color:     color,
			CreatedBy: callerID,
			CreatedAt: time.Now(),
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("label: create in %s: %w", inboxID, err)
	}
	return &out, nil
}

// ForInbox lists the labels defined on inboxID, by name.
func ForInbox(db *gorm.DB, callerID, inboxID string) ([]models.Label, error) {
	inbox, err := operator.GetInbox(db, strings.TrimSpace(inboxID))
	if err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	if err := requireAdmin(db, callerID, inbox.TenantID); err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	var out []models.Label
	if err := db.Where("inbox_id = ?", inbox.ID).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("label: list %s: %w", inbox.ID, err)
	}
	return out, nil
}

// Edit applies u to labelID.
func Edit(db *gorm.DB, callerID, labelID string, u Update) (*models.Label, error) {
	var out *models.Label
	err := db.Transaction(func(tx *gorm.DB) error {
		l, err := get(tx, strings.TrimSpace(labelID))
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, callerID, l.TenantID); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if u.Name != nil {
			name, err := models.CleanID("name", *u.Name)
			if err != nil {
				return err
			}
			updates["name"] = name
		}
		if u.Color != nil {
			updates["color"] = *u.Color
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Label{}).Where("id = ?", l.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		out, err = get(tx, l.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("label: update %s: %w", labelID, err)
	}
	return out, nil
}

// Delete removes labelID and every attachment of it.
func Delete(db *gorm.DB, callerID, labelID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		l, err := get(tx, strings.TrimSpace(labelID))
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, callerID, l.TenantID); err != nil {
			return err
		}
		if err := tx.Where("label_id = ?", l.ID).Delete(&models.ConversationLabel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Label{}, "id = ?", l.ID).Error
	})
	if err != nil {
		return fmt.Errorf("label: delete %s: %w", labelID, err)
	}
	return nil
}

// ForConversation lists the labels attached to conversationID.
func ForConversation(db *gorm.DB, callerID, conversationID string) ([]models.Label, error) {
	conv, err := conversation.Get(db, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	if err := requireAdmin(db, callerID, conv.TenantID); err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}
	var out []models.Label
	if err := db.Joins("JOIN conversation_labels cl ON cl.label_id = labels.id").
		Where("cl.conversation_id = ?", conv.ID).
		Order("labels.name").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("label: list for %s: %w", conv.ID, err)
	}
	return out, nil
}

// Attach puts labelID on conversationID. Both must belong to the same
// tenant. Attaching twice returns the existing attachment.
func Attach(db *gorm.DB, callerID, conversationID, labelID string) (*models.ConversationLabel, error) {
	var out models.ConversationLabel
	err := db.Transaction(func(tx *gorm.DB) error {
		conv, err := conversation.Get(tx, strings.TrimSpace(conversationID))
		if err != nil {
			return err
		}
		l, err := get(tx, strings.TrimSpace(labelID))
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, callerID, conv.TenantID); err != nil {
			return err
		}
		if l.TenantID != conv.TenantID {
			return fmt.Errorf("label %s is not in tenant %s: %w", l.ID, conv.TenantID, models.ErrNotEligible)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "label_id"}},
			DoNothing: true,
		}).Create(&models.ConversationLabel{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			LabelID:        l.ID,
			CreatedAt:      time.Now(),
		}).Error; err != nil {
			return err
		}
		return tx.Where("conversation_id = ? AND label_id = ?", conv.ID, l.ID).First(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("label: attach %s to %s: %w", labelID, conversationID, err)
	}
	return &out, nil
}

// Detach removes labelID from conversationID.
func Detach(db *gorm.DB, callerID, conversationID, labelID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		conv, err := conversation.Get(tx, strings.TrimSpace(conversationID))
		if err != nil {
			return err
		}
		if err := requireAdmin(tx, callerID, conv.TenantID); err != nil {
			return err
		}
		result := tx.Where("conversation_id = ? AND label_id = ?", conv.ID, strings.TrimSpace(labelID)).
			Delete(&models.ConversationLabel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("label %s not attached: %w", labelID, models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("label: detach %s from %s: %w", labelID, conversationID, err)
	}
	return nil
}
