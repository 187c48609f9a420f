// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 消息角色常量。账本只记录两种角色：提问的人类与回答的 AI。
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// MessagePayload 是消息的结构化负载，在数据库中以 JSON 列存储。
type MessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Value 实现了 driver.Valuer 接口，写库时序列化为 JSON。
func (p MessagePayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan 实现了 sql.Scanner 接口，读库时从 JSON 反序列化。
func (p *MessagePayload) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("无法将 %T 扫描为 MessagePayload", value)
	}
}

// Message 对应于数据库中的 'messages' 表，是对话的只追加账本。
// 消息一旦写入即不可变；顺序由自增主键定义，绝不重排；
// 每条消息都携带本次调用上报的 token 数与货币成本。
type Message struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ConversationUUID string         `gorm:"type:char(36);index;not null" json:"conversationUuid"`
	Payload          MessagePayload `gorm:"column:message;type:json;not null" json:"message"`
	Tokens           int            `gorm:"not null" json:"tokens"`
	Cost             float64        `gorm:"not null" json:"cost"`
	SendAt           time.Time      `gorm:"autoCreateTime" json:"sendAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}
