package models

import (
	"time"

	"gorm.io/gorm"
)

// Item 目录条目表
//
// 两个租户对同一实物各自建档：SKU、成本、分类都按租户独立；跨租户订单
// 首次涉及某条目时懒复制到对端租户，EntityIDInSourceTenant 指向来源条目。
type Item struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                                   // 主键
	TenantID               uint           `gorm:"index;not null" json:"tenant_id"`                        // 所属租户
	SKU                    string         `gorm:"index;not null" json:"sku"`                              // 租户内 SKU
	Title                  string         `gorm:"type:varchar(200);not null" json:"title"`                // 标题
	Description            string         `gorm:"type:text" json:"description,omitempty"`                 // 描述
	ImageURL               string         `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	UnitCost               Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_cost"` // 单价
	CostOverride           *Money         `gorm:"type:decimal(20,2)" json:"cost_override,omitempty"`      // 租户级成本覆盖
	CategoryID             *uint          `gorm:"index" json:"category_id,omitempty"`                     // 所属分类
	EntityIDInSourceTenant *uint          `gorm:"index" json:"entity_id_in_source_tenant,omitempty"`
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt              time.Time      `json:"updated_at"`                                             // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                         // 软删除时间
}

// TableName 指定表名
func (Item) TableName() string {
	return "items"
}

// EffectiveCost 返回生效成本（覆盖价优先）
func (i *Item) EffectiveCost() Money {
	if i == nil {
		return Money{}
	}
	if i.CostOverride != nil {
		return *i.CostOverride
	}
	return i.UnitCost
}
