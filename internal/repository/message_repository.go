// Package repository 提供了数据访问层的实现。
package repository

import (
	"fmt"

	"gorm.io/gorm"

	"insurapolis-go/internal/model"
)

// MessageRepository 定义了消息账本的操作接口。
// 账本只追加：消息一旦写入不再更新，仅随对话删除而级联移除。
// 本仓库独占"对话 UUID → 有序消息列表"映射。
type MessageRepository interface {
	AppendUserMessage(conversationUUID, content string, tokens int, cost float64) error
	AppendAIMessage(conversationUUID, content string, tokens int, cost float64) error
	FullHistory(conversationUUID string) ([]model.Message, error)
	RecentWindow(conversationUUID string, windowSize int) ([]model.Message, error)
	TotalTokensByUser(userID uint) (int64, error)
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// AppendUserMessage 追加一条人类消息，send_at 取写入时刻。
func (r *messageRepository) AppendUserMessage(conversationUUID, content string, tokens int, cost float64) error {
	return r.append(conversationUUID, model.RoleHuman, content, tokens, cost)
}

// AppendAIMessage 追加一条 AI 消息，send_at 取写入时刻。
func (r *messageRepository) AppendAIMessage(conversationUUID, content string, tokens int, cost float64) error {
	return r.append(conversationUUID, model.RoleAI, content, tokens, cost)
}

// append 执行单行插入。每次追加各自成一个事务，写入即持久；
// 两次追加之间不提供跨行原子性，失败策略由编排层决定。
func (r *messageRepository) append(conversationUUID, role, content string, tokens int, cost float64) error {
	message := model.Message{
		ConversationUUID: conversationUUID,
		Payload: model.MessagePayload{
			Role:    role,
			Content: content,
		},
		Tokens: tokens,
		Cost:   cost,
	}
	if err := r.db.Create(&message).Error; err != nil {
		return fmt.Errorf("追加消息失败: %w", err)
	}
	return nil
}

// FullHistory 按发送顺序（自增 id 升序）返回对话的全部消息。
func (r *messageRepository) FullHistory(conversationUUID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("conversation_uuid = ?", conversationUUID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("查询对话历史失败: %w", err)
	}
	return messages, nil
}

// RecentWindow 返回最近 windowSize 条消息，升序排列，用于限定提示词规模。
// 只读操作，不改动账本。
func (r *messageRepository) RecentWindow(conversationUUID string, windowSize int) ([]model.Message, error) {
	if windowSize <= 0 {
		windowSize = 4
	}
	var messages []model.Message
	err := r.db.Where("conversation_uuid = ?", conversationUUID).
		Order("id DESC").
		Limit(windowSize).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("查询历史窗口失败: %w", err)
	}
	// 倒序查询取到最近的若干条，再反转回时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// TotalTokensByUser 汇总某用户全部对话的 token 消耗。
// 用户没有任何消息时返回 0 而不是错误。
func (r *messageRepository) TotalTokensByUser(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&model.Message{}).
		Joins("JOIN conversations ON conversations.uuid = messages.conversation_uuid").
		Where("conversations.user_id = ?", userID).
		Select("COALESCE(SUM(messages.tokens), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("汇总用户 token 消耗失败: %w", err)
	}
	return total, nil
}
