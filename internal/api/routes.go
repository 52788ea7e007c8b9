package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers, gatherer prometheus.Gatherer) {
	router.GET("/healthz", h.health)

	// Ingestion.
	router.POST("/orchestrator/message", h.onMessage)

	// Operators.
	router.GET("/operator/:id/status", h.getStatus)
	router.POST("/operator/:id/status", h.setStatus)
	router.GET("/operator/:id/inboxes", h.inboxes)
	router.POST("/operator/:id/allocate", h.allocate)

	// Conversations.
	router.GET("/conversations", h.listQueued)
	router.POST("/conversations/:id/claim", h.claim)
	router.POST("/conversations/:id/resolve", h.resolve)
	router.POST("/conversations/:id/deallocate", h.deallocate)
	router.POST("/conversations/:id/reassign", h.reassign)
	router.POST("/conversations/:id/move_inbox", h.moveInbox)
	router.GET("/search", h.search)

	// Labels.
	router.POST("/inbox/:id/labels", h.createLabel)
	router.GET("/inbox/:id/labels", h.inboxLabels)
	router.PUT("/labels/:id", h.editLabel)
	router.DELETE("/labels/:id", h.deleteLabel)
	router.GET("/conversations/:id/labels", h.conversationLabels)
	router.POST("/conversations/:id/labels/:label_id", h.attachLabel)
	router.DELETE("/conversations/:id/labels/:label_id", h.detachLabel)

	// Admin.
	router.PUT("/admin/tenant/:id/config", h.tenantConfig)
	router.POST("/admin/grace-expiry/run", h.runGraceExpiry)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
