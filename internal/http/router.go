package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter assembles the gin engine: CORS, health probe, the JWT-protected
// operator API and the token-gated signature webhook.
func NewRouter(handler *Handler, authMiddleware, webhookMiddleware gin.HandlerFunc, environment string) *gin.Engine {
	if environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Webhook-Token")
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/contracts", handler.createContract)
	protected.POST("/contracts/:id/replace", handler.replaceWorker)
	protected.POST("/contracts/complete-elapsed", handler.completeElapsed)
	protected.GET("/contracts/current", handler.allCurrentContracts)
	protected.GET("/contracts/:id/pdf", handler.contractPDF)
	protected.GET("/customers/:phone/contract", handler.currentContract)
	protected.GET("/customers/:phone/history", handler.history)
	protected.GET("/customers/:phone/history/export", handler.exportHistory)

	webhooks := router.Group("/webhooks")
	webhooks.Use(webhookMiddleware)
	webhooks.POST("/signature", handler.signatureWebhook)

	return router
}
