package models

import (
	"time"

	"gorm.io/gorm"
)

// MoveTransaction 跨租户移库事务表
//
// 表示两个租户之间的实物交接：对端租户的交付在本租户落为 completed，
// 对端的退货/拆包落为 deleted。只由镜像层写入。
type MoveTransaction struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                        // 主键
	TenantID           uint           `gorm:"index;not null" json:"tenant_id"`             // 所属租户
	OrderRequestItemID uint           `gorm:"index;not null" json:"order_request_item_id"` // 对应订单项
	Quantity           int            `gorm:"not null" json:"quantity"`                    // 数量
	Status             string         `gorm:"index;not null" json:"status"`                // in_transit / completed / deleted
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`                      // 完成时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                  // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                              // 软删除时间
}

// TableName 指定表名
func (MoveTransaction) TableName() string {
	return "move_transactions"
}
