package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// handleStream serves the polling alternative to /ws as server-sent events.
// Every interval it emits one market-data event keyed by display symbol.
func (s *FastAPIServer) handleStream(c *gin.Context) {
	if !s.secretMatches(c.Query("secret")) {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized: Invalid secret key.")
		return
	}

	var aliases []string
	for _, a := range strings.Split(c.Query("symbols"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}
	if len(aliases) == 0 {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'symbols' is required.")
		return
	}
	if s.Resolver == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Quote stream is not available.")
		return
	}

	interval := s.Config.BroadcastInterval()
	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-ctx.Done():
				return false
			case <-s.quit:
				return false
			case <-time.After(interval):
			}
		}
		first = false

		c.SSEvent("market-data", s.Resolver.Resolve(ctx, aliases, time.Now()))
		return true
	})
}
