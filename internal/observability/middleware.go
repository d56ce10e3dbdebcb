package observability

import (
	"time"

	"github.com/danmuck/labctl/internal/node"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestObserver logs one line per request and records the HTTP metrics.
// Paths are labelled by route pattern so instrument ids do not explode the
// metric cardinality.
func RequestObserver(n node.Node, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(n.NodeID(), c.Request.Method, route, status, elapsed)

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if id := c.Param("id"); id != "" {
			event = event.Str("instrument", id).Str("action", c.Param("action"))
		}
		event.
			Str("node", n.NodeID()).
			Str("kind", n.Kind()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}
