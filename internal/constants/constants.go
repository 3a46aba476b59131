package constants

// 订单项状态常量
const (
	ItemStatusOpen           = "open"
	ItemStatusBackOrdered    = "back_ordered"
	ItemStatusCancelled      = "cancelled"
	ItemStatusPacked         = "packed"
	ItemStatusOutForDelivery = "out_for_delivery"
	ItemStatusDelivered      = "delivered"
	ItemStatusReturned       = "returned"
	ItemStatusClosed         = "closed"
)

// 订单状态常量
const (
	OrderRequestStatusActive = "active"
	OrderRequestStatusClosed = "closed"
)

// 订单项类型常量
const (
	ItemTypeAsset     = "asset"
	ItemTypeInventory = "inventory"
	ItemTypeNoSKU     = "no_sku"
)

// 物流明细状态常量（在订单项状态之外多一个 unpacked）
const (
	TrackingStatusPacked         = ItemStatusPacked
	TrackingStatusOutForDelivery = ItemStatusOutForDelivery
	TrackingStatusDelivered      = ItemStatusDelivered
	TrackingStatusUnpacked       = "unpacked"
)

// 发货事务状态常量
const (
	ShippingTransactionStatusInTransit = "in_transit"
	ShippingTransactionStatusDelivered = "delivered"
)

// 跨租户移库事务状态常量
const (
	MoveTransactionStatusInTransit = "in_transit"
	MoveTransactionStatusCompleted = "completed"
	MoveTransactionStatusDeleted   = "deleted"
)

// 操作人角色常量
const (
	ActorRoleAdmin  = "admin"
	ActorRolePicker = "picker"
	ActorRoleViewer = "viewer"
)

// 状态历史事由常量
const (
	HistoryReasonCreated  = "created"
	HistoryReasonPicked   = "picked"
	HistoryReasonShipped  = "shipped"
	HistoryReasonReturned = "returned"
	HistoryReasonUnpacked = "unpacked"
	HistoryReasonDeleted  = "deleted"
	HistoryReasonMirrored = "mirrored"
)

// 队列任务类型常量
const (
	QueueDefault              = "default"
	TaskOrderStatusEmail      = "order_request:status_email"
	TaskOrderRequestAutoClose = "order_request:auto_close"
)
