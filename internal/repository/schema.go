// Package repository 提供了数据访问层的实现。
package repository

import (
	"fmt"

	"gorm.io/gorm"

	"insurapolis-go/internal/model"
)

// EnsureSchema 幂等地建立全部数据表及外键。
// 每次进程启动都会调用；表已存在时不做任何修改（CREATE TABLE IF NOT EXISTS 语义）。
// conversations.user_id → users.id 与 messages.conversation_uuid → conversations.uuid
// 均为 ON DELETE CASCADE，对话删除时账本切片随行原子移除。
// 连接失败对进程是致命的，错误必须上抛而不是吞掉。
func EnsureSchema(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Package{},
		&model.UserInsurance{},
	)
	if err != nil {
		return fmt.Errorf("数据库表结构初始化失败: %w", err)
	}
	return nil
}
