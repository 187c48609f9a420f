// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"insurapolis-go/internal/service"
)

// respondServiceError 把业务层的类型化错误翻译为稳定的 HTTP 状态码与错误码。
// 原始数据库或上游错误文本绝不透传给客户端。
func respondServiceError(c *gin.Context, err error) {
	var partial *service.PartialTurnError

	switch {
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"code":    "forbidden",
			"message": "无权访问该对话",
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "资源不存在",
		})
	case errors.Is(err, service.ErrDuplicateName):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "name_exists",
			"message": "对话名称已存在",
		})
	case errors.Is(err, service.ErrUpstreamGeneration):
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "generation_failed",
			"message": "回答生成服务暂不可用",
		})
	case errors.As(err, &partial):
		// 半截轮次：把已生成的回答随错误带给客户端，便于重试或展示
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":              "partial_turn",
			"message":           "回答已生成但未完整入账，请刷新历史后重试",
			"conversation_uuid": partial.ConversationUUID,
			"response":          partial.Answer,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "服务内部错误",
		})
	}
}
