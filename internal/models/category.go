package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 目录分类表
//
// 跨租户复制时按租户限定名称复制一份，EntityIDInSourceTenant 指向来源分类。
type Category struct {
	ID                     uint           `gorm:"primarykey" json:"id"`            // 主键
	TenantID               uint           `gorm:"index;not null" json:"tenant_id"` // 所属租户
	Name                   string         `gorm:"index;not null" json:"name"`      // 分类名称
	EntityIDInSourceTenant *uint          `gorm:"index" json:"entity_id_in_source_tenant,omitempty"`
	CreatedAt              time.Time      `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt              time.Time      `json:"updated_at"`              // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`          // 软删除时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
