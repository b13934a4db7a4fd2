package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/endpoint"
	"github.com/lysyi3m/rss-funnel/app/source"
)

// ServeFeed dispatches the request path against the endpoint registry
// and serves the transformed feed.
func (h *Handler) ServeFeed(c *gin.Context) {
	e, ok := h.registry.Lookup(c.Request.URL.Path)
	if !ok {
		c.String(http.StatusNotFound, "no endpoint at %s", c.Request.URL.Path)
		return
	}

	req, err := endpoint.ParseRequest(c.Request, h.base)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err)
		return
	}

	fd, err := e.Run(c.Request.Context(), req)
	if err != nil {
		status := errorStatus(err)
		slog.Error("Endpoint request failed", "path", e.Path(), "status", status, "error", err)
		c.String(status, "%s", err)
		return
	}

	body, err := fd.Serialize()
	if err != nil {
		slog.Error("Feed serialization failed", "path", e.Path(), "error", err)
		c.String(http.StatusInternalServerError, "%s", err)
		return
	}

	c.Header("Content-Type", fd.ContentType())
	c.String(http.StatusOK, body)
}

// errorStatus maps request-caused source errors to 400; everything
// else is a server-side failure.
func errorStatus(err error) int {
	var missing *source.MissingPlaceholderError
	var validation *source.TemplateValidationError
	switch {
	case errors.Is(err, source.ErrDynamicSourceUnspecified),
		errors.Is(err, source.ErrBaseNotInferred),
		errors.As(err, &missing),
		errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.GetVersion(),
		"endpoints": len(h.registry.Paths()),
	})
}

// APIReload re-reads the configuration file and swaps the endpoint
// registry. Endpoints that fail to build keep the previous registry in
// service.
func (h *Handler) APIReload(c *gin.Context) {
	if err := h.reload(); err != nil {
		slog.Error("Configuration reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Configuration reloaded", "endpoints", len(h.registry.Paths()))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"endpoints": h.registry.Paths(),
	})
}
