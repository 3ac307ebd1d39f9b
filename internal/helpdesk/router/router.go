// Package router provides helpdesk service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/helpdesk-x/internal/helpdesk/handler"
)

// Register registers the helpdesk service routes.
func Register(engine *gin.Engine, chat *handler.ChatHandler, incidents *handler.IncidentHandler, kb *handler.KBHandler) {
	logger.Info("Registering helpdesk routes...")

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		// Conversation endpoints
		v1.POST("/chat", chat.Chat)
		v1.DELETE("/chat/sessions/:id", chat.DeleteSession)

		// Incident admin endpoints
		inc := v1.Group("/incidents")
		{
			inc.GET("", incidents.List)
			inc.GET("/stats", incidents.Stats)
			inc.GET("/pending-approval", incidents.PendingApproval)
			inc.GET("/:id", incidents.Get)
			inc.PUT("/:id/status", incidents.UpdateStatus)
			inc.PUT("/:id/admin-message", incidents.SetAdminMessage)
			inc.DELETE("/:id", incidents.Delete)
		}

		// Knowledge base endpoints
		kbGroup := v1.Group("/kb")
		{
			kbGroup.POST("/approvals/:incident_id", kb.Approve)
			kbGroup.DELETE("/approvals/:incident_id", kb.Reject)
			kbGroup.GET("/entries", kb.List)
			kbGroup.GET("/entries/:kb_id", kb.Get)
			kbGroup.DELETE("/entries/:kb_id", kb.Remove)
			kbGroup.POST("/sync", kb.ForceSync)
			kbGroup.GET("/sync/status", kb.SyncStatus)
		}
	}

	logger.Info("HTTP routes registered")
}
