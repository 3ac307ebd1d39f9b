// Package middleware provides gin middleware shared by HTTP servers.
package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

// HeaderXRequestID is the request id header name.
const HeaderXRequestID = "X-Request-ID"

// requestIDKey is the gin context key the request id is stored under.
const requestIDKey = "request_id"

// RequestID returns a middleware that tags every request with a unique id.
// An id supplied by the caller in X-Request-ID is kept, otherwise one is
// generated. The id is echoed back in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(HeaderXRequestID, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id attached to c, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
