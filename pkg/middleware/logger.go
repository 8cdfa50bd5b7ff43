package middleware

import (
	"time"

	applog "fogsly/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id, ok := IdentityFrom(c); ok {
			fields = append(fields, zap.String("user_id", id.UserID))
		}

		applog.FromContext(c.Request.Context()).Info("http.request", fields...)
	}
}
