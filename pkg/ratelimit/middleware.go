// pkg/ratelimit/middleware.go
package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HeaderAgentID 请求方 Agent 标识
const HeaderAgentID = "X-Agent-ID"

// Identifier 优先取 Agent 标识，其次客户端IP
func Identifier(c *gin.Context) string {
	if id := c.GetHeader(HeaderAgentID); id != "" {
		return id
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}

// Middleware 对指定动作限流，超限返回 429
func Middleware(l *Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := l.Check(Identifier(c), action)
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(result.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "请求过于频繁，请稍后再试",
				"code":        "RATE_LIMITED",
				"retry_after": result.RetryAfter,
			})
			return
		}
		c.Next()
	}
}
