package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

// Logger is the access log.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(RequestIDKey)),
		}
		if uid, ok := UserID(c); ok {
			fields = append(fields, zap.Uint64("user_id", uid))
		}

		switch {
		case status >= 500:
			log.L().Error("http request", fields...)
		case status >= 400:
			log.L().Warn("http request", fields...)
		default:
			log.L().Info("http request", fields...)
		}
	}
}
