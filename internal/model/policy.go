// Package model 包含了应用的数据模型定义。
package model

import "time"

// Package 对应于数据库中的 'packages' 表，描述一个保险产品包。
type Package struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Company   string    `gorm:"type:varchar(255);index;not null" json:"company"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Product   string    `gorm:"type:varchar(255)" json:"product"`
	Version   string    `gorm:"type:varchar(255)" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Package) TableName() string {
	return "packages"
}

// UserInsurance 对应于数据库中的 'user_insurances' 表，
// 记录用户订阅的保险包及其免赔额、保额等保单要素。
type UserInsurance struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	PackageID  uint      `gorm:"index;not null" json:"packageId"`
	Deductible float64   `json:"deductible"`
	SumInsured string    `gorm:"type:varchar(255)" json:"sumInsured"`
	NetPremium float64   `json:"netPremium"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Package Package `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE" json:"package"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UserInsurance) TableName() string {
	return "user_insurances"
}
