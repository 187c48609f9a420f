// Package repository 提供了数据访问层的实现。
package repository

import (
	"fmt"

	"gorm.io/gorm"

	"insurapolis-go/internal/model"
)

// PolicyRepository 定义了保单数据的查询接口。
// 保单要素（产品包、免赔额、保额）在每轮对话时读取，注入提示词与检索过滤器。
type PolicyRepository interface {
	FindUserInsurances(userID uint) ([]model.UserInsurance, error)
}

// policyRepository 是 PolicyRepository 接口的 GORM 实现。
type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository 创建一个新的 PolicyRepository 实例。
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

// FindUserInsurances 返回某用户订阅的全部保险包及其保单要素。
func (r *policyRepository) FindUserInsurances(userID uint) ([]model.UserInsurance, error) {
	var insurances []model.UserInsurance
	err := r.db.Preload("Package").Where("user_id = ?", userID).Find(&insurances).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户保单失败: %w", err)
	}
	return insurances, nil
}
