// Package repository 提供了数据访问层的实现。
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"insurapolis-go/internal/model"
)

// ErrDuplicateConversationName 表示 (所有者, 名称) 组合已存在。
// 由 (user_id, name) 复合唯一索引保证，并发下的"查重后插入"竞态也会被收敛到这里。
var ErrDuplicateConversationName = errors.New("对话名称已存在")

// ConversationRepository 定义了对话存储的操作接口。
// 本仓库独占"对话 UUID → 所有者"映射；除 EnsureSchema 外任何组件不得改动表结构。
type ConversationRepository interface {
	Create(conversation *model.Conversation) error
	FindByUUID(uuid string) (*model.Conversation, error)
	RenameByUUID(uuid, newName string) (bool, error)
	DeleteByUUID(uuid string) (bool, error)
	ListByOwner(userID uint) ([]model.Conversation, error)
	Owns(userID uint, uuid string) (bool, error)
	NameExists(userID uint, name string) (bool, error)
}

// conversationRepository 是 ConversationRepository 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 插入一条新的对话记录。
// 唯一键冲突被翻译为 ErrDuplicateConversationName，不向上层泄漏原始数据库错误。
func (r *conversationRepository) Create(conversation *model.Conversation) error {
	err := r.db.Create(conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateConversationName
		}
		return fmt.Errorf("创建对话失败: %w", err)
	}
	return nil
}

// FindByUUID 根据 UUID 查找对话。
func (r *conversationRepository) FindByUUID(uuid string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := r.db.Where("uuid = ?", uuid).First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// RenameByUUID 更新对话的显示名称。
// 对话不存在时返回 (false, nil)；与同一所有者的已有名称冲突时返回 ErrDuplicateConversationName。
func (r *conversationRepository) RenameByUUID(uuid, newName string) (bool, error) {
	result := r.db.Model(&model.Conversation{}).Where("uuid = ?", uuid).Update("name", newName)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, ErrDuplicateConversationName
		}
		return false, fmt.Errorf("重命名对话失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByUUID 删除对话及其全部消息（外键级联）。
// 对话不存在时返回 (false, nil)。
func (r *conversationRepository) DeleteByUUID(uuid string) (bool, error) {
	result := r.db.Where("uuid = ?", uuid).Delete(&model.Conversation{})
	if result.Error != nil {
		return false, fmt.Errorf("删除对话失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByOwner 按插入顺序返回某所有者的全部对话。
func (r *conversationRepository) ListByOwner(userID uint) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("查询对话列表失败: %w", err)
	}
	return conversations, nil
}

// Owns 是授权谓词：对话存在且属于该用户时为 true。
// 对话不存在时返回 (false, nil)，绝不以错误形式泄漏存在性。
func (r *conversationRepository) Owns(userID uint, uuid string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Conversation{}).
		Where("uuid = ? AND user_id = ?", uuid, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询对话归属失败: %w", err)
	}
	return count > 0, nil
}

// NameExists 检查某所有者是否已有同名对话。
func (r *conversationRepository) NameExists(userID uint, name string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Conversation{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询对话名称失败: %w", err)
	}
	return count > 0, nil
}
