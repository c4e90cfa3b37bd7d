package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// getSessions lists recent gateway activity from the audit store, newest first.
// Events reach the store in batches, so the last second may be missing.
func (s *FastAPIServer) getSessions(c *gin.Context) {
	if !s.secretMatches(c.Query("secret")) {
		abortWithError(c, http.StatusUnauthorized, "Unauthorized: Invalid secret key.")
		return
	}
	if s.Sessions == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Session audit store is disabled.")
		return
	}

	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer.")
			return
		}
		limit = min(n, maxSessionLimit)
	}

	events, err := s.Sessions.RecentSessionEvents(limit)
	if err != nil {
		s.Logger.Error("Failed to read session events: %v", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to read session events.")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}
