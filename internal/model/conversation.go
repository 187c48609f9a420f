// Package model 包含了应用的数据模型定义。
package model

import "time"

// Conversation 对应于数据库中的 'conversations' 表。
// UUID 全局唯一；Name 在同一所有者范围内唯一（复合唯一索引），
// 依赖该索引把并发的"查重后插入"竞态收敛为唯一键冲突。
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_conversations_owner_name" json:"name"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_conversations_owner_name" json:"userId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Messages 声明了对话到消息账本的级联关系：删除对话时原子地删除其全部消息。
	Messages []Message `gorm:"foreignKey:ConversationUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationSummary 是对话列表接口返回的精简视图。
type ConversationSummary struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}
