// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应于数据库中的 'users' 表。
// 用户通过注册创建一次，之后不可变；本服务不删除用户。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Firstname string    `gorm:"type:varchar(100);not null" json:"firstname"`
	Surname   string    `gorm:"type:varchar(100);not null" json:"surname"`
	// Password 存储 bcrypt 哈希，绝不出现在 JSON 响应中。
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Conversations 声明了用户到对话的级联关系。
	Conversations []Conversation `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
