package middleware

import (
	"github.com/gin-gonic/gin"

	"tutor/internal/pkg/id"
)

const (
	// RequestIDKey gin context 中保存请求 id 的 key
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID 沿用上游传入的请求 id，没有时生成一个，并写回响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = id.New()
		}
		c.Set(RequestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
