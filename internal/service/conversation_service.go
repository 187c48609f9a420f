// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"insurapolis-go/internal/config"
	"insurapolis-go/internal/model"
	"insurapolis-go/internal/repository"
	"insurapolis-go/pkg/log"
)

// ConversationService 定义了对话管理的业务接口。
// 所有带 userID 的操作都在所有权边界内执行：
// 对话不存在与不属于调用者统一表现为 ErrForbidden。
type ConversationService interface {
	CreateConversation(userID uint, name string) (*model.Conversation, []model.ChatMessageDTO, error)
	ListConversations(userID uint) ([]model.ConversationSummary, error)
	GetHistory(userID uint, conversationUUID string) ([]model.ChatMessageDTO, error)
	RenameConversation(userID uint, conversationUUID, newName string) error
	DeleteConversation(userID uint, conversationUUID string) error
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// CreateConversation 为用户创建一个新对话。
// name 为空时按创建时刻生成默认名称；同一所有者下名称冲突返回 ErrDuplicateName。
// 创建成功后自动写入一条 AI 欢迎消息作为账本的第一条记录。
func (s *conversationService) CreateConversation(userID uint, name string) (*model.Conversation, []model.ChatMessageDTO, error) {
	if name == "" {
		name = fmt.Sprintf("conv_%s", time.Now().Format("20060102_150405"))
	}

	conversation := &model.Conversation{
		UUID:   uuid.NewString(),
		Name:   name,
		UserID: userID,
	}
	// 先查重给出友好错误，唯一索引兜底并发窗口
	exists, err := s.conversationRepo.NameExists(userID, name)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrDuplicateName
	}
	if err := s.conversationRepo.Create(conversation); err != nil {
		if errors.Is(err, repository.ErrDuplicateConversationName) {
			return nil, nil, ErrDuplicateName
		}
		return nil, nil, err
	}

	welcome := config.Conf.Chat.WelcomeMessage
	if welcome == "" {
		welcome = "Bienvenu chez Insurapolis, comment puis-je vous aider ?"
	}
	welcomeTokens := config.Conf.Chat.WelcomeTokens
	if welcomeTokens <= 0 {
		welcomeTokens = 12
	}
	if err := s.messageRepo.AppendAIMessage(conversation.UUID, welcome, welcomeTokens, 0); err != nil {
		// 欢迎语写入失败不回滚对话创建，仅记录
		log.Errorf("[ConversationService] 写入欢迎消息失败, uuid: %s, error: %v", conversation.UUID, err)
	}

	history, err := s.messageRepo.FullHistory(conversation.UUID)
	if err != nil {
		return nil, nil, err
	}
	return conversation, model.MessagesToDTO(history), nil
}

// ListConversations 按插入顺序返回用户的全部对话。
func (s *conversationService) ListConversations(userID uint) ([]model.ConversationSummary, error) {
	conversations, err := s.conversationRepo.ListByOwner(userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summaries = append(summaries, model.ConversationSummary{UUID: c.UUID, Name: c.Name})
	}
	return summaries, nil
}

// GetHistory 返回对话的完整消息历史（升序）。
func (s *conversationService) GetHistory(userID uint, conversationUUID string) ([]model.ChatMessageDTO, error) {
	if err := s.requireOwnership(userID, conversationUUID); err != nil {
		return nil, err
	}
	history, err := s.messageRepo.FullHistory(conversationUUID)
	if err != nil {
		return nil, err
	}
	return model.MessagesToDTO(history), nil
}

// RenameConversation 更新对话名称。
// 新名称与同一所有者的已有名称冲突返回 ErrDuplicateName；
// 所有权检查通过后对话又被并发删除的窄窗口返回 ErrNotFound。
func (s *conversationService) RenameConversation(userID uint, conversationUUID, newName string) error {
	if err := s.requireOwnership(userID, conversationUUID); err != nil {
		return err
	}
	exists, err := s.conversationRepo.NameExists(userID, newName)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateName
	}
	ok, err := s.conversationRepo.RenameByUUID(conversationUUID, newName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateConversationName) {
			return ErrDuplicateName
		}
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation 删除对话及其全部消息。删除不可逆。
func (s *conversationService) DeleteConversation(userID uint, conversationUUID string) error {
	if err := s.requireOwnership(userID, conversationUUID); err != nil {
		return err
	}
	ok, err := s.conversationRepo.DeleteByUUID(conversationUUID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// requireOwnership 是统一的授权入口：非所有者与不存在同样返回 ErrForbidden。
func (s *conversationService) requireOwnership(userID uint, conversationUUID string) error {
	owned, err := s.conversationRepo.Owns(userID, conversationUUID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrForbidden
	}
	return nil
}
