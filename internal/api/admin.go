package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inboxd/internal/allocation"
	"github.com/zulandar/inboxd/internal/label"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"github.com/zulandar/inboxd/internal/tenant"
)

type labelRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type tenantConfigRequest struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
}

func (h *handlers) createLabel(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	l, err := label.Create(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"), name, req.Color)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toLabels([]models.Label{*l})[0])
}

func (h *handlers) inboxLabels(c *gin.Context) {
	list, err := label.ForInbox(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": toLabels(list)})
}

func (h *handlers) editLabel(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	l, err := label.Edit(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"),
		label.Update{Name: req.Name, Color: req.Color})
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, toLabels([]models.Label{*l})[0])
}

func (h *handlers) deleteLabel(c *gin.Context) {
	if err := label.Delete(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id")); err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Label deleted"})
}

func (h *handlers) conversationLabels(c *gin.Context) {
	list, err := label.ForConversation(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": toLabels(list)})
}

func (h *handlers) attachLabel(c *gin.Context) {
	att, err := label.Attach(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"), c.Param("label_id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              att.ID,
		"conversation_id": att.ConversationID,
		"label_id":        att.LabelID,
		"created_at":      att.CreatedAt,
	})
}

func (h *handlers) detachLabel(c *gin.Context) {
	if err := label.Detach(h.db.WithContext(c.Request.Context()), c.Query("operator_id"), c.Param("id"), c.Param("label_id")); err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Label detached"})
}

// tenantConfig updates the tenant's priority weights. Only an admin of the
// tenant may do so, and at least one weight must be supplied.
func (h *handlers) tenantConfig(c *gin.Context) {
	var req tenantConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	tenantID, err := models.CleanID("tenant_id", c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	callerID, err := models.CleanID("operator_id", c.Query("operator_id"))
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	u := tenant.WeightsUpdate{Alpha: req.Alpha, Beta: req.Beta}
	if u.Empty() {
		badRequest(c, "at least one of alpha or beta must be provided")
		return
	}

	db := h.db.WithContext(c.Request.Context())
	caller, err := operator.Get(db, callerID)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	if err := allocation.CanAdminister(caller, tenantID).Err(); err != nil {
		h.fail(c, fmt.Errorf("tenant config: %w", err), http.StatusNotFound)
		return
	}
	p, err := tenant.UpsertWeights(db, tenantID, u)
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":  p.TenantID,
		"alpha":      p.Alpha,
		"beta":       p.Beta,
		"updated_at": p.UpdatedAt,
	})
}

// runGraceExpiry runs one expiry pass synchronously and reports its counts.
func (h *handlers) runGraceExpiry(c *gin.Context) {
	res, err := h.ledger.ProcessExpiry(c.Request.Context())
	if err != nil {
		h.fail(c, err, http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, res)
}
