package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tutor/internal/pkg/ctxutil"
)

// Logger 访问日志中间件
// 身份中间件在路由组内执行，客户端 id 只能在 c.Next() 之后从请求 context 读取
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(RequestIDKey)).
			Int("body_size", c.Writer.Size())

		if clientID, ok := ctxutil.GetClientID(c.Request.Context()); ok {
			event = event.Str("client_id", clientID)
		}
		if conversationID := c.Param("id"); conversationID != "" {
			event = event.Str("conversation_id", conversationID)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}
