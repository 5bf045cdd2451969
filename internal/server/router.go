package server

import (
	"fmt"
	"net/http"
	"time"

	"face-lock-go/config"
	"face-lock-go/internal/server/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter baut den HTTP-Router mit allen API-Routen auf
func NewRouter(cfg *config.Config, api *handlers.APIHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	// CORS: das Dashboard darf von anderen Origins aus zugreifen
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.RegisterRoutes(router.Group("/api"))

	return router
}

// Run startet den HTTP-Server
func Run(cfg *config.Config, router *gin.Engine) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("HTTP server listening on %s", addr)
	return router.Run(addr)
}

// requestLogger protokolliert abgeschlossene Requests über logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// SSE-Verbindungen laufen lange; deren Ende ist kein interessantes Ereignis
		if c.Writer.Status() >= http.StatusBadRequest {
			log.WithFields(log.Fields{
				"method":  c.Request.Method,
				"path":    c.Request.URL.Path,
				"status":  c.Writer.Status(),
				"latency": time.Since(start),
			}).Warn("Request failed")
		} else {
			log.WithFields(log.Fields{
				"method":  c.Request.Method,
				"path":    c.Request.URL.Path,
				"status":  c.Writer.Status(),
				"latency": time.Since(start),
			}).Debug("Request completed")
		}
	}
}
