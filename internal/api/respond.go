package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inboxd/internal/models"
)

type conversationResponse struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	InboxID                string     `json:"inbox_id"`
	ExternalConversationID string     `json:"external_conversation_id"`
	CustomerPhoneNumber    string     `json:"customer_phone_number"`
	State                  string     `json:"state"`
	AssignedOperatorID     *string    `json:"assigned_operator_id"`
	LastMessageAt          time.Time  `json:"last_message_at"`
	MessageCount           int        `json:"message_count"`
	PriorityScore          float64    `json:"priority_score"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	ResolvedAt             *time.Time `json:"resolved_at"`
}

func toConversation(c *models.Conversation) conversationResponse {
	return conversationResponse{
		ID:                     c.ID,
		TenantID:               c.TenantID,
		InboxID:                c.InboxID,
		ExternalConversationID: c.ExternalConversationID,
		CustomerPhoneNumber:    c.CustomerPhoneNumber,
		State:                  string(c.State),
		AssignedOperatorID:     c.AssignedOperatorID,
		LastMessageAt:          c.LastMessageAt,
		MessageCount:           c.MessageCount,
		PriorityScore:          c.PriorityScore,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
		ResolvedAt:             c.ResolvedAt,
	}
}

func toConversations(cs []models.Conversation) []conversationResponse {
	out := make([]conversationResponse, 0, len(cs))
	for i := range cs {
		out = append(out, toConversation(&cs[i]))
	}
	return out
}

type conversationListResponse struct {
	Conversations  []conversationResponse `json:"conversations"`
	Total          int                    `json:"total"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	HasMore        bool                   `json:"has_more"`
	OperatorStatus string                 `json:"operator_status,omitempty"`
}

type statusResponse struct {
	OperatorID         string    `json:"operator_id"`
	Status             string    `json:"status"`
	LastStatusChangeAt time.Time `json:"last_status_change_at"`
}

type inboxResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type labelResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	InboxID   string    `json:"inbox_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func toLabels(ls []models.Label) []labelResponse {
	out := make([]labelResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, labelResponse{
			ID:        l.ID,
			TenantID:  l.TenantID,
			InboxID:   l.InboxID,
			Name:      l.Name,
			Color:     l.Color,
			CreatedBy: l.CreatedBy,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the failure taxonomy onto HTTP. NotFound and NotEligible
// share noMatch so callers cannot tell an unknown id from an ineligible one.
func statusFor(err error, noMatch int) int {
	switch {
	case errors.Is(err, models.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNotEligible):
		return noMatch
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error, noMatch int) {
	code := statusFor(err, noMatch)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		c.JSON(code, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
