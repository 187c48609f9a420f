// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"insurapolis-go/internal/model"
	"insurapolis-go/internal/service"
	"insurapolis-go/pkg/log"
)

// ConversationHandler 处理与对话管理相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// CreateConversationRequest 定义了创建对话 API 的请求体结构。name 可省略。
type CreateConversationRequest struct {
	Name string `json:"name"`
}

// CreateConversation 处理创建新对话的请求。
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	var req CreateConversationRequest
	// 请求体可为空，绑定失败按空名称处理
	_ = c.ShouldBindJSON(&req)

	conversation, history, err := h.service.CreateConversation(user.ID, req.Name)
	if err != nil {
		log.Warnf("CreateConversation: failed for user %d, error: %v", user.ID, err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_uuid": conversation.UUID,
		"conversation_name": conversation.Name,
		"chat_history":      history,
	})
}

// ListConversations 返回当前用户的全部对话。
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	conversations, err := h.service.ListConversations(user.ID)
	if err != nil {
		log.Error("ListConversations: query failed", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversation 返回某个对话的完整消息历史。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	user := c.MustGet("user").(*model.User)
	conversationUUID := c.Param("uuid")

	history, err := h.service.GetHistory(user.ID, conversationUUID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": history})
}

// RenameConversationRequest 定义了重命名对话 API 的请求体结构。
type RenameConversationRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameConversation 处理重命名对话的请求。
func (h *ConversationHandler) RenameConversation(c *gin.Context) {
	user := c.MustGet("user").(*model.User)
	conversationUUID := c.Param("uuid")

	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：name 不能为空",
		})
		return
	}

	if err := h.service.RenameConversation(user.ID, conversationUUID, req.Name); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "对话名称更新成功"})
}

// DeleteConversation 处理删除对话的请求。删除不可逆，消息随对话一并移除。
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	user := c.MustGet("user").(*model.User)
	conversationUUID := c.Param("uuid")

	if err := h.service.DeleteConversation(user.ID, conversationUUID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "对话已删除"})
}
