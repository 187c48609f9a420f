// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"insurapolis-go/internal/model"
	"insurapolis-go/internal/service"
	"insurapolis-go/pkg/database"
	"insurapolis-go/pkg/log"
	"insurapolis-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// wsTicketPrefix 是 WebSocket 一次性票据在 Redis 中的键前缀。
const wsTicketPrefix = "chat:ws:ticket:"

// ChatHandler 负责处理同步问答与 WebSocket 流式问答。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
	}
}

// ChatRequest 定义了问答 API 的请求体结构。
type ChatRequest struct {
	Question         string `json:"question" binding:"required"`
	ConversationUUID string `json:"conversation_uuid" binding:"required"`
}

// Chat 处理一轮同步问答请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：question 和 conversation_uuid 不能为空",
		})
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), user, req.ConversationUUID, req.Question)
	if err != nil {
		log.Warnf("Chat: turn failed for user %d, conversation %s, error: %v", user.ID, req.ConversationUUID, err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetWebsocketTicket 签发一张一次性的 WebSocket 连接票据。
// 票据存入 Redis 并在 60 秒后过期，多实例部署下任一实例都能核销。
func (h *ChatHandler) GetWebsocketTicket(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	ticket := token.GenerateRandomString(16)
	key := wsTicketPrefix + ticket
	if err := database.RDB.Set(c.Request.Context(), key, user.ID, time.Minute).Err(); err != nil {
		log.Error("GetWebsocketTicket: failed to store ticket", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "票据签发失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"ticket": ticket},
	})
}

// wsInbound 是 WebSocket 上行消息的统一结构。
type wsInbound struct {
	Type             string `json:"type"`
	ConversationUUID string `json:"conversation_uuid"`
	Question         string `json:"question"`
}

// HandleWebsocket 处理一个传入的 WebSocket 流式问答连接。
// 客户端先用票据建立连接，之后每条 chat 消息触发一轮流式问答；
// stop 消息设置停止标志，跳过剩余分块的下发。
func (h *ChatHandler) HandleWebsocket(c *gin.Context) {
	ticket := c.Param("ticket")

	// GetDel 保证票据一次性消费
	userIDValue, err := database.RDB.GetDel(c.Request.Context(), wsTicketPrefix+ticket).Uint64()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效或已使用的票据",
		})
		return
	}

	user, err := h.userService.GetProfile(uint(userIDValue))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "用户不存在",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.Email)

	// 每连接一个停止标志，stop 消息置位，下一轮提问前复位
	var stopFlag atomic.Bool

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var inbound wsInbound
		if err := json.Unmarshal(message, &inbound); err != nil {
			writeWSError(conn, "无法解析消息")
			continue
		}

		switch inbound.Type {
		case "stop":
			stopFlag.Store(true)
			ack := map[string]interface{}{
				"type":      "stop",
				"message":   "响应已停止",
				"timestamp": time.Now().UnixMilli(),
			}
			b, _ := json.Marshal(ack)
			_ = conn.WriteMessage(websocket.TextMessage, b)

		case "chat":
			if inbound.Question == "" || inbound.ConversationUUID == "" {
				writeWSError(conn, "question 和 conversation_uuid 不能为空")
				continue
			}
			stopFlag.Store(false)
			err := h.chatService.ChatStream(
				c.Request.Context(),
				user,
				inbound.ConversationUUID,
				inbound.Question,
				conn,
				stopFlag.Load,
			)
			if err != nil {
				log.Warnf("ChatStream: turn failed for user %d: %v", user.ID, err)
				writeWSError(conn, "本轮问答失败")
			}

		default:
			writeWSError(conn, "未知的消息类型")
		}
	}
}

// writeWSError 向客户端写出一条错误通知。
func writeWSError(conn *websocket.Conn, message string) {
	notif := map[string]interface{}{
		"type":      "error",
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
