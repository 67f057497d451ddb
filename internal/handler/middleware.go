package handler

import (
	"context"
	"strings"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags each request with an id, reusing the caller's if present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("http: request failed", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("http: request rejected", fields...)
		default:
			logger.Info("http: request", fields...)
		}
	}
}

// Timeout bounds the request context. Store transactions use that context,
// so a request that runs out of time rolls back.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin accepts only HS256 bearer tokens whose role claim is admin.
// With an empty secret the check is disabled.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			respondError(c, apperror.Unauthorized("missing bearer token"))
			return
		}

		claims, err := auth.Validate(tokenString, secret)
		if err != nil {
			respondError(c, apperror.Unauthorized(err.Error()))
			return
		}

		if claims.Role != auth.RoleAdmin {
			respondError(c, apperror.Forbidden("admin role required"))
			return
		}
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}
