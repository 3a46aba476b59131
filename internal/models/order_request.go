package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderRequest 采购订单表
//
// 跨租户订单以两条镜像记录表示：请求方（child）一条、履约方（parent）一条，
// 每条通过 EntityIDInSourceTenant 指向对端。ParentTenantID 与 ChildTenantID
// 至多只有一个被设置。
type OrderRequest struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                              // 主键
	TenantID               uint           `gorm:"index;not null" json:"tenant_id"`                   // 所属租户
	Title                  string         `gorm:"type:varchar(200)" json:"title"`                    // 订单标题
	Status                 string         `gorm:"index;not null" json:"status"`                      // active / closed
	LeastItemStatus        string         `gorm:"index" json:"least_item_status"`                    // 订单项最低进度汇总
	ProjectID              *uint          `gorm:"index" json:"project_id,omitempty"`                 // 所属项目
	ParentTenantID         *uint          `gorm:"index" json:"parent_tenant_id,omitempty"`           // 履约方租户（child 侧记录携带）
	ChildTenantID          *uint          `gorm:"index" json:"child_tenant_id,omitempty"`            // 请求方租户（parent 侧记录携带）
	EntityIDInSourceTenant *uint          `gorm:"index" json:"entity_id_in_source_tenant,omitempty"` // 对端镜像订单 ID
	ScheduleID             string         `gorm:"type:varchar(64)" json:"schedule_id,omitempty"`     // 延迟自动关闭任务标识
	BlockedByID            *uint          `json:"blocked_by_id,omitempty"`                           // 拣货锁持有人
	BlockExpiresAt         *time.Time     `json:"block_expires_at,omitempty"`                        // 拣货锁到期时间
	Notes                  string         `gorm:"type:text" json:"notes,omitempty"`                  // 备注
	Version                int            `gorm:"not null;default:1" json:"version"`                 // 乐观锁版本号
	CreatedByID            uint           `json:"created_by_id"`                                     // 创建人
	UpdatedByID            uint           `json:"updated_by_id"`                                     // 最后修改人
	DeletedByID            *uint          `json:"deleted_by_id,omitempty"`                           // 删除人
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt              time.Time      `gorm:"index" json:"updated_at"`                           // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间

	Items []OrderRequestItem `gorm:"foreignKey:OrderRequestID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (OrderRequest) TableName() string {
	return "order_requests"
}

// IsExternal 判断是否跨租户订单（任意一半）
func (o *OrderRequest) IsExternal() bool {
	return o != nil && (o.ParentTenantID != nil || o.ChildTenantID != nil)
}

// IsChildSide 判断是否请求方半边
func (o *OrderRequest) IsChildSide() bool {
	return o != nil && o.ParentTenantID != nil
}

// IsParentSide 判断是否履约方半边
func (o *OrderRequest) IsParentSide() bool {
	return o != nil && o.ChildTenantID != nil
}

// CounterpartTenantID 返回对端租户 ID
func (o *OrderRequest) CounterpartTenantID() (uint, bool) {
	if o == nil {
		return 0, false
	}
	if o.ParentTenantID != nil {
		return *o.ParentTenantID, true
	}
	if o.ChildTenantID != nil {
		return *o.ChildTenantID, true
	}
	return 0, false
}
