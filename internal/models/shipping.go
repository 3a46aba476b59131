package models

import (
	"time"

	"gorm.io/gorm"
)

// ShippingContainer 发货容器表（一个容器对应一个物流号）
type ShippingContainer struct {
	ID         uint           `gorm:"primarykey" json:"id"`                    // 主键
	TenantID   uint           `gorm:"index;not null" json:"tenant_id"`         // 所属租户
	TrackingID string         `gorm:"uniqueIndex;not null" json:"tracking_id"` // 物流号
	SiteID     uint           `gorm:"index" json:"site_id"`                    // 起运站点
	Status     string         `gorm:"index;not null" json:"status"`            // packed / out_for_delivery / delivered
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`                              // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (ShippingContainer) TableName() string {
	return "shipping_containers"
}

// ShippingTransaction 发货事务表（容器内某订单项的一笔数量）
type ShippingTransaction struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                        // 主键
	TenantID           uint           `gorm:"index;not null" json:"tenant_id"`             // 所属租户
	TrackingID         string         `gorm:"index;not null" json:"tracking_id"`           // 所属容器物流号
	OrderRequestItemID uint           `gorm:"index;not null" json:"order_request_item_id"` // 对应订单项
	Quantity           int            `gorm:"not null" json:"quantity"`                    // 数量
	Status             string         `gorm:"index;not null" json:"status"`                // in_transit / delivered
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`                      // 签收时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                  // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                              // 软删除时间
}

// TableName 指定表名
func (ShippingTransaction) TableName() string {
	return "shipping_transactions"
}
