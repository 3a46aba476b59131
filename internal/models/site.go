package models

import (
	"time"

	"gorm.io/gorm"
)

// Site 站点表（库存所在地，拣货与退货装箱按站点分组）
type Site struct {
	ID        uint           `gorm:"primarykey" json:"id"`            // 主键
	TenantID  uint           `gorm:"index;not null" json:"tenant_id"` // 所属租户
	Name      string         `gorm:"not null" json:"name"`            // 站点名称
	CreatedAt time.Time      `gorm:"index" json:"created_at"`         // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                      // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                  // 软删除时间
}

// TableName 指定表名
func (Site) TableName() string {
	return "sites"
}

// SiteStock 站点库存表
type SiteStock struct {
	ID        uint      `gorm:"primarykey" json:"id"`              // 主键
	TenantID  uint      `gorm:"index;not null" json:"tenant_id"`   // 所属租户
	SiteID    uint      `gorm:"index;not null" json:"site_id"`     // 站点
	ItemID    uint      `gorm:"index;not null" json:"item_id"`     // 目录条目
	OnHand    int       `gorm:"not null;default:0" json:"on_hand"` // 现存数量
	CreatedAt time.Time `json:"created_at"`                        // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                        // 更新时间
}

// TableName 指定表名
func (SiteStock) TableName() string {
	return "site_stocks"
}
