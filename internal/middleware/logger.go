package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/mine-game/internal/logger"
)

// RequestLogger 请求日志中间件，接入zap而不是gin默认的标准输出
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.LogRequest(
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}
