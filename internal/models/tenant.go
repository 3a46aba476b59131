package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant 租户表
type Tenant struct {
	ID        uint           `gorm:"primarykey" json:"id"`             // 主键
	Name      string         `gorm:"uniqueIndex;not null" json:"name"` // 租户名称
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"` // 唯一标识
	CreatedAt time.Time      `gorm:"index" json:"created_at"`          // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                       // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                   // 软删除时间
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}
