package api

import (
	authdelivery "mailmirror-backend/internal/auth/delivery"
	emaildelivery "mailmirror-backend/internal/email/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires all HTTP routes
func SetupRouter(emailHandler *emaildelivery.EmailHandler, jwtSecret string) *gin.Engine {
	router := gin.Default()

	router.GET("/api/health", emailHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Cron entry point authenticates with a shared secret header
	router.POST("/api/sync/run-scheduled", emailHandler.RunScheduledSync)

	api := router.Group("/api")
	api.Use(authdelivery.AuthMiddleware(jwtSecret))
	{
		sync := api.Group("/sync")
		{
			sync.POST("/trigger", emailHandler.TriggerSync)
			sync.GET("/status", emailHandler.GetSyncStatus)
			sync.GET("/progress/:id", emailHandler.GetSyncProgress)
			sync.POST("/cancel/:id", emailHandler.CancelSync)
		}

		threads := api.Group("/threads")
		{
			threads.GET("", emailHandler.ListThreads)
			threads.GET("/:id", emailHandler.GetThread)
			threads.PATCH("/:id/read", emailHandler.MarkThreadRead)
			threads.PATCH("/:id/star", emailHandler.ToggleStar)
		}

		messages := api.Group("/messages")
		{
			messages.GET("/:id/body-url", emailHandler.GetBodyURL)
			messages.GET("/:id/attachments/:attachmentId/url", emailHandler.GetAttachmentURL)
		}

		emails := api.Group("/emails")
		{
			emails.POST("/send", emailHandler.SendEmail)
			emails.POST("/reply", emailHandler.ReplyEmail)
			emails.POST("/forward", emailHandler.ForwardEmail)
		}
	}

	return router
}
