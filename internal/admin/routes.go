package admin

import (
	"net/http"

	"sportsdash/internal/keymanager"
	"sportsdash/internal/metrics"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, keys keymanager.Manager, eventService EventService, claims ClaimService) {
	handler := NewHandler(keys, eventService, claims)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		eventsGroup := api.Group("/events")
		{
			eventsGroup.GET("", handler.ListEventsHandler)
			eventsGroup.POST("", handler.CreateEventHandler)
			eventsGroup.GET("/:id", handler.GetEventHandler)
			eventsGroup.DELETE("/:id", handler.DeleteEventHandler)
			eventsGroup.POST("/:id/duplicate", handler.DuplicateEventHandler)
			eventsGroup.POST("/:id/sponsors", handler.UploadSponsorLogosHandler)
			eventsGroup.GET("/:id/keys", handler.ListKeysHandler)
			eventsGroup.POST("/:id/keys", handler.GenerateKeysHandler)
			eventsGroup.GET("/:id/keys/stats", handler.KeyStatsHandler)
			eventsGroup.GET("/:id/keys/export", handler.ExportKeysHandler)
		}

		keysGroup := api.Group("/keys")
		{
			keysGroup.POST("/:id/revoke", handler.RevokeKeyHandler)
			keysGroup.POST("/:id/restore", handler.RestoreKeyHandler)
			keysGroup.DELETE("/:id", handler.DeleteKeyHandler)
		}

		api.POST("/claims", handler.ClaimKeyHandler)
	}
}
