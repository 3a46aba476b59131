package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StatusChange 状态历史条目
type StatusChange struct {
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
	ActorID   uint      `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// StatusHistory 只追加的状态历史，当前状态恒等于最后一条的状态
type StatusHistory []StatusChange

// Value 实现 driver.Valuer 接口
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan 实现 sql.Scanner 接口
func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = StatusHistory{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// Last 返回最后一条历史
func (h StatusHistory) Last() (StatusChange, bool) {
	if len(h) == 0 {
		return StatusChange{}, false
	}
	return h[len(h)-1], true
}

// Has 判断历史中是否出现过某状态
func (h StatusHistory) Has(status string) bool {
	for _, entry := range h {
		if entry.Status == status {
			return true
		}
	}
	return false
}

// Clone 深拷贝历史
func (h StatusHistory) Clone() StatusHistory {
	if h == nil {
		return nil
	}
	out := make(StatusHistory, len(h))
	copy(out, h)
	return out
}

// TrackingDetail 一条物流明细（一个包裹腿）
type TrackingDetail struct {
	TrackingID  string    `json:"tracking_id"`
	ContainerID uint      `json:"container_id,omitempty"`
	SiteID      uint      `json:"site_id,omitempty"` // 起运站点
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"` // packed / out_for_delivery / delivered / unpacked
	UpdatedAt   time.Time `json:"updated_at"`
}

// TrackingDetailList 物流明细集合（活跃或历史）
type TrackingDetailList []TrackingDetail

// Value 实现 driver.Valuer 接口
func (l TrackingDetailList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *TrackingDetailList) Scan(value interface{}) error {
	if value == nil {
		*l = TrackingDetailList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Clone 深拷贝明细集合
func (l TrackingDetailList) Clone() TrackingDetailList {
	if l == nil {
		return nil
	}
	out := make(TrackingDetailList, len(l))
	copy(out, l)
	return out
}

// HasTrackingID 判断集合中是否存在指定物流号
func (l TrackingDetailList) HasTrackingID(trackingID string) bool {
	for _, leg := range l {
		if leg.TrackingID == trackingID {
			return true
		}
	}
	return false
}

// TransactionDetail 一条跨租户移库事务引用
type TransactionDetail struct {
	TransactionID uint      `json:"transaction_id"`
	Quantity      int       `json:"quantity"`
	Status        string    `json:"status"` // in_transit / completed / deleted
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionDetailList 移库事务引用集合
type TransactionDetailList []TransactionDetail

// Value 实现 driver.Valuer 接口
func (l TransactionDetailList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *TransactionDetailList) Scan(value interface{}) error {
	if value == nil {
		*l = TransactionDetailList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// OrderRequestItem 采购订单项表
//
// ParentOrderRequestItemID 记录退货拆分血缘；EntityIDInSourceTenant 记录
// 跨租户镜像血缘。两者都只是查询引用，不构成所有权。
type OrderRequestItem struct {
	ID                       uint                  `gorm:"primarykey" json:"id"`                              // 主键
	OrderRequestID           uint                  `gorm:"index;not null" json:"order_request_id"`            // 所属订单
	TenantID                 uint                  `gorm:"index;not null" json:"tenant_id"`                   // 所属租户
	ItemID                   *uint                 `gorm:"index" json:"item_id,omitempty"`                    // 目录条目（no_sku 项为空）
	Type                     string                `gorm:"not null" json:"type"`                              // asset / inventory / no_sku
	SKU                      string                `gorm:"index" json:"sku,omitempty"`                        // SKU 快照
	Title                    string                `gorm:"type:varchar(200)" json:"title"`                    // 标题快照
	Description              string                `gorm:"type:text" json:"description,omitempty"`            // 描述快照
	ImageURL                 string                `gorm:"type:varchar(500)" json:"image_url,omitempty"`      // 图片快照
	Quantity                 int                   `gorm:"not null" json:"quantity"`                          // 数量
	Cost                     Money                 `gorm:"type:decimal(20,2);not null;default:0" json:"cost"` // 单价
	Status                   string                `gorm:"index;not null" json:"status"`                      // 当前状态
	StatusHistoryJSON        StatusHistory         `gorm:"type:json" json:"status_history"`                   // 状态历史
	TrackingDetailsJSON      TrackingDetailList    `gorm:"type:json" json:"tracking_details"`                 // 活跃物流明细
	TrackingHistoryJSON      TrackingDetailList    `gorm:"type:json" json:"tracking_history"`                 // 退役物流明细
	TransactionDetailsJSON   TransactionDetailList `gorm:"type:json" json:"transaction_details"`              // 活跃移库事务
	TransactionHistoryJSON   TransactionDetailList `gorm:"type:json" json:"transaction_history"`              // 退役移库事务
	ProjectID                *uint                 `gorm:"index" json:"project_id,omitempty"`                 // 所属项目
	ParentOrderRequestItemID *uint                 `gorm:"index" json:"parent_order_request_item_id,omitempty"`
	EntityIDInSourceTenant   *uint                 `gorm:"index" json:"entity_id_in_source_tenant,omitempty"`
	Notes                    string                `gorm:"type:text" json:"notes,omitempty"`  // 备注
	Version                  int                   `gorm:"not null;default:1" json:"version"` // 乐观锁版本号
	UpdatedByID              uint                  `json:"updated_by_id"`                     // 最后修改人
	DeletedByID              *uint                 `json:"deleted_by_id,omitempty"`           // 删除人
	CreatedAt                time.Time             `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt                time.Time             `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt                gorm.DeletedAt        `gorm:"index" json:"-"`                    // 软删除时间
}

// TableName 指定表名
func (OrderRequestItem) TableName() string {
	return "order_request_items"
}

// IsReturnLeg 判断是否退货腿（拆分血缘已设置）
func (i *OrderRequestItem) IsReturnLeg() bool {
	return i != nil && i.ParentOrderRequestItemID != nil
}

// HasSKU 判断是否带 SKU 订单项
func (i *OrderRequestItem) HasSKU() bool {
	return i != nil && i.Type != "no_sku"
}
