package api

import (
	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ActorContextKey 鉴权中间件写入的操作者上下文键
const ActorContextKey = "actor_context"

// getActor 从请求上下文取出操作者，缺失时直接响应 401
func getActor(c *gin.Context) (service.ActorContext, bool) {
	value, exists := c.Get(ActorContextKey)
	if !exists {
		respondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return service.ActorContext{}, false
	}
	actor, ok := value.(service.ActorContext)
	if !ok || actor.ActorID == 0 {
		respondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return service.ActorContext{}, false
	}
	return actor, true
}

func respondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		logger.Warnw("api_request_failed",
			"request_id", requestID(c),
			"path", c.Request.URL.Path,
			"code", code,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

func requestID(c *gin.Context) string {
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
