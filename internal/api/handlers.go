package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inboxd/internal/allocation"
	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/grace"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
)

type handlers struct {
	db           *gorm.DB
	engine       *allocation.Engine
	ledger       *grace.Ledger
	log          *slog.Logger
	graceMinutes int
}

type messageRequest struct {
	TenantID               string `json:"tenant_id"`
	DisplayName            string `json:"display_name"`
	ExternalConversationID string `json:"external_conversation_id"`
	CustomerPhoneNumber    string `json:"customer_phone_number"`
}

type operatorRequest struct {
	OperatorID string `json:"operator_id"`
}

type reassignRequest struct {
	OperatorID       string `json:"operator_id"`
	TargetOperatorID string `json:"target_operator_id"`
}

type moveInboxRequest struct {
	OperatorID    string `json:"operator_id"`
	TargetInboxID string `json:"target_inbox_id"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// onMessage records an inbound customer message. The inbox is keyed by the
// customer's phone number within the tenant.
func (h *handlers) onMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	inbox, err := operator.GetOrCreateInbox(h.db.WithContext(c.Request.Context()),
		req.TenantID, req.CustomerPhoneNumber, req.DisplayName)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	conv, err := conversation.OnMessage(h.db.WithContext(c.Request.Context()),
		req.TenantID, inbox.ID, req.ExternalConversationID, req.CustomerPhoneNumber, time.Now())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID, "state": conv.State})
}

func (h *handlers) writeStatus(c *gin.Context, operatorID string) {
	st, err := operator.Status(h.db.WithContext(c.Request.Context()), operatorID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		OperatorID:         st.OperatorID,
		Status:             string(st.Status),
		LastStatusChangeAt: st.LastStatusChangeAt,
	})
}

func (h *handlers) getStatus(c *gin.Context) {
	id, err := models.CleanID("operator_id", c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	h.writeStatus(c, id)
}

// setStatus drives the grace flows: OFFLINE opens grace entries for the
// operator's allocations and AVAILABLE cancels them.
func (h *handlers) setStatus(c *gin.Context) {
	status, err := models.ParseAvailability(c.Query("status"))
	if err != nil {
		badRequest(c, "status must be AVAILABLE or OFFLINE")
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	if status == models.Offline {
		_, err = h.ledger.GoOffline(ctx, id, h.graceMinutes)
	} else {
		_, err = h.ledger.GoOnline(ctx, id)
	}
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	h.writeStatus(c, id)
}

func (h *handlers) inboxes(c *gin.Context) {
	id, err := models.CleanID("operator_id", c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	list, err := operator.Inboxes(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	out := make([]inboxResponse, 0, len(list))
	for _, in := range list {
		out = append(out, inboxResponse{
			ID:          in.ID,
			TenantID:    in.TenantID,
			PhoneNumber: in.PhoneNumber,
			DisplayName: in.DisplayName,
			CreatedAt:   in.CreatedAt,
			UpdatedAt:   in.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"inboxes": out})
}

func (h *handlers) listQueued(c *gin.Context) {
	q, err := h.engine.ListQueued(c.Request.Context(), c.Query("operator_id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, conversationListResponse{
		Conversations:  toConversations(q.Conversations),
		Total:          len(q.Conversations),
		Limit:          conversation.ListLimit,
		OperatorStatus: string(q.Availability),
	})
}

// allocate reports an empty queue as a normal 200 response.
func (h *handlers) allocate(c *gin.Context) {
	conv, err := h.engine.AllocateNext(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNothingAvailable) {
		c.JSON(http.StatusOK, gin.H{"message": "No conversations available"})
		return
	}
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) claim(c *gin.Context) {
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	conv, err := h.engine.Claim(c.Request.Context(), c.Param("id"), req.OperatorID)
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) resolve(c *gin.Context) {
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	conv, err := h.engine.Resolve(c.Request.Context(), c.Param("id"), req.OperatorID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) deallocate(c *gin.Context) {
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	conv, err := h.engine.DeallocateAs(c.Request.Context(), c.Param("id"), req.OperatorID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	conv, err := h.engine.Reassign(c.Request.Context(), c.Param("id"), req.OperatorID, req.TargetOperatorID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) moveInbox(c *gin.Context) {
	var req moveInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	conv, err := h.engine.MoveInbox(c.Request.Context(), c.Param("id"), req.OperatorID, req.TargetInboxID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toConversation(conv))
}

func (h *handlers) search(c *gin.Context) {
	tenantID, err := models.CleanID("tenant_id", c.Query("tenant_id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	phone, err := models.CleanID("phone_number", c.Query("phone_number"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	list, err := conversation.SearchByPhone(h.db.WithContext(c.Request.Context()), tenantID, phone)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": toConversations(list)})
}
