package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/inboxd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListLimit caps every listing to the most recently active conversations.
const ListLimit = 100

// ListFilters holds optional filters for listing a tenant's conversations.
type ListFilters struct {
	InboxID            string
	State              models.ConversationState
	AssignedOperatorID string
}

// Get retrieves a conversation by ID.
func Get(db *gorm.DB, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation: %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("conversation: get %s: %w", id, err)
	}
	return &c, nil
}

// Queued returns up to limit QUEUED conversations for tenantID, most
// recently active first. This is the candidate set for scoring.
func Queued(db *gorm.DB, tenantID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = ListLimit
	}
	var out []models.Conversation
	if err := db.Where("tenant_id = ? AND state = ?", tenantID, models.StateQueued).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("conversation: queued for tenant %s: %w", tenantID, err)
	}
	return out, nil
}

// List returns a tenant's conversations matching filters, most recently
// active first, capped at ListLimit.
func List(db *gorm.DB, tenantID string, filters ListFilters) ([]models.Conversation, error) {
	q := db.Model(&models.Conversation{}).Where("tenant_id = ?", tenantID)
	if filters.InboxID != "" {
		q = q.Where("inbox_id = ?", filters.InboxID)
	}
	if filters.State != "" {
		q = q.Where("state = ?", filters.State)
	}
	if filters.AssignedOperatorID != "" {
		q = q.Where("assigned_operator_id = ?", filters.AssignedOperatorID)
	}

	var out []models.Conversation
	if err := q.Order("last_message_at DESC").Limit(ListLimit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("conversation: list for tenant %s: %w", tenantID, err)
	}
	return out, nil
}

// SearchByPhone returns a tenant's conversations with an exact customer
// phone match.
func SearchByPhone(db *gorm.DB, tenantID, phone string) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := db.Where("tenant_id = ? AND customer_phone_number = ?", tenantID, phone).
		Order("last_message_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("conversation: search %s: %w", phone, err)
	}
	return out, nil
}

// SavePriorities writes freshly computed scores back to storage.
func SavePriorities(tx *gorm.DB, convs []models.Conversation) error {
	for i := range convs {
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", convs[i].ID).
			Update("priority_score", convs[i].PriorityScore).Error; err != nil {
			return fmt.Errorf("conversation: save priority %s: %w", convs[i].ID, err)
		}
	}
	return nil
}

// OnMessage records an inbound customer message. The first message for a
// (tenant, inbox, external id) creates a QUEUED conversation with score 0;
// later ones bump the message count and activity time. State and score are
// never changed here.
func OnMessage(db *gorm.DB, tenantID, inboxID, externalID, phone string, now time.Time) (*models.Conversation, error) {
	var err error
	if tenantID, err = models.CleanID("tenant_id", tenantID); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if inboxID, err = models.CleanID("inbox_id", inboxID); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if externalID, err = models.CleanID("external_conversation_id", externalID); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}

	var out models.Conversation
	err = db.Transaction(func(tx *gorm.DB) error {
		row := models.Conversation{
			ID:                     uuid.NewString(),
			TenantID:               tenantID,
			InboxID:                inboxID,
			ExternalConversationID: externalID,
			CustomerPhoneNumber:    phone,
			State:                  models.StateQueued,
			LastMessageAt:          now,
			MessageCount:           1,
			PriorityScore:          0,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		// The composite unique key turns a repeat message into a touch.
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "inbox_id"}, {Name: "external_conversation_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"message_count":   gorm.Expr("message_count + 1"),
				"last_message_at": now,
				"updated_at":      now,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND inbox_id = ? AND external_conversation_id = ?",
			tenantID, inboxID, externalID).First(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: record message %s/%s: %w", inboxID, externalID, err)
	}
	return &out, nil
}
