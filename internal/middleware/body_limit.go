// Package middleware provides HTTP middleware for the stubguard server.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BodyLimitResponse is the JSON body sent when a request body is too large.
type BodyLimitResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	MaxBytes int64  `json:"maxBytes"`
}

// BodyLimit caps request bodies at maxBytes. Requests that announce a larger
// Content-Length are rejected up front; others are wrapped in
// http.MaxBytesReader, and a handler that hits the limit only needs to record
// the read error with c.Error for the 413 response to be sent.
func BodyLimit(maxBytes int64, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			rejectBody(c, logger, c.Request.ContentLength, maxBytes)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()

		for _, ginErr := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(ginErr.Err, &tooLarge) {
				c.Errors = c.Errors[:0]
				rejectBody(c, logger, -1, tooLarge.Limit)
				return
			}
		}
	}
}

func rejectBody(c *gin.Context, logger zerolog.Logger, size, maxBytes int64) {
	logger.Warn().
		Str("clientIP", c.ClientIP()).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int64("size", size).
		Int64("maxBytes", maxBytes).
		Msg("request body rejected")

	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, BodyLimitResponse{
		Error:    "bodyTooLarge",
		Message:  "request body exceeds the maximum allowed size",
		MaxBytes: maxBytes,
	})
}
