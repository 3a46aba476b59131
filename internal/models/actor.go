package models

import (
	"time"

	"gorm.io/gorm"
)

// Actor 操作人表（租户内用户）
type Actor struct {
	ID           uint           `gorm:"primarykey" json:"id"`                  // 主键
	TenantID     uint           `gorm:"index;not null" json:"tenant_id"`       // 所属租户
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`     // 登录邮箱
	DisplayName  string         `gorm:"type:varchar(100)" json:"display_name"` // 显示名
	PasswordHash string         `gorm:"type:varchar(200)" json:"-"`            // bcrypt 口令散列
	Role         string         `gorm:"index;not null" json:"role"`            // admin / picker / viewer
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`               // 创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                            // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                        // 软删除时间
}

// TableName 指定表名
func (Actor) TableName() string {
	return "actors"
}
