package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorEnvelope is the JSON body of every HTTP-layer failure.
type errorEnvelope struct {
	Code        int    `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// -----------------------------------------------------------------------------

func abortWithError(c *gin.Context, code int, description string) {
	c.AbortWithStatusJSON(code, errorEnvelope{
		Code:        code,
		Name:        http.StatusText(code),
		Description: description,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) recoverPanic(c *gin.Context, recovered interface{}) {
	s.Logger.Error("Unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
	abortWithError(c, http.StatusInternalServerError, fmt.Sprint(recovered))
}
