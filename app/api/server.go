package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-funnel/app/config"
	"github.com/lysyi3m/rss-funnel/app/imageproxy"
)

// NewServer wires the HTTP routes: the image proxy, health and
// management API, and a catch-all that dispatches endpoint paths
// against the registry.
func NewServer(handler *Handler, auth *config.Auth) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.String(200, "rss-funnel is up and running!")
	})
	r.GET("/health", handler.GetHealth)
	r.GET("/_image", imageproxy.Handler)

	api := r.Group("/api")
	if auth != nil {
		api.Use(gin.BasicAuth(gin.Accounts{auth.Username: auth.Password}))
	}
	api.POST("/reload", handler.APIReload)

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})

	// Endpoint paths come from the config file and change on reload, so
	// they are dispatched dynamically instead of being registered as
	// routes.
	r.NoRoute(handler.ServeFeed)

	return r
}
