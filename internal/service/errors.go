package service

import "errors"

// 校验类错误：调用方输入不合法，不重试
var (
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrEmptyStatusHistory     = errors.New("status history is empty")
	ErrQuantityInvalid        = errors.New("quantity must be positive")
	ErrReturnQuantityExceeded = errors.New("quantity returned exceeds quantity delivered")
	ErrItemNotDelivered       = errors.New("item is not in delivered status")
	ErrExternalOrderReturn    = errors.New("returns are not allowed on cross-tenant orders")
	ErrNoActiveTracking       = errors.New("item has no active tracking legs")
	ErrOrderClosed            = errors.New("order request is closed")
	ErrEmailExists            = errors.New("email already registered")
	ErrInvalidEmail           = errors.New("invalid email address")
)

// 邮件服务状态类错误
var (
	ErrEmailServiceDisabled      = errors.New("email service is disabled")
	ErrEmailServiceNotConfigured = errors.New("email service is not configured")
)

// 授权与租约类错误：不重试
var (
	ErrForbidden              = errors.New("forbidden")
	ErrOrderBlocked           = errors.New("order request is blocked by another actor")
	ErrExternalOrderWrongSide = errors.New("operation not allowed from this tenant side")
	ErrInvalidCredentials     = errors.New("invalid email or password")
)

// 资源缺失类错误
var (
	ErrOrderNotFound     = errors.New("order request not found")
	ErrItemNotFound      = errors.New("order request item not found")
	ErrCatalogNotFound   = errors.New("catalog item not found")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrActorNotFound     = errors.New("actor not found")
	ErrSiteNotFound      = errors.New("site not found")
	ErrContainerNotFound = errors.New("shipping container not found")
)

// ErrMirrorCounterpartMissing 镜像对端缺失，说明两租户数据已发散，需人工介入
var ErrMirrorCounterpartMissing = errors.New("cross-tenant mirror counterpart not found")

// ErrConcurrentUpdate 重试耗尽后对外暴露的写冲突错误
var ErrConcurrentUpdate = errors.New("concurrent update, please retry")
