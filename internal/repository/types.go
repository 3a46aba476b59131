package repository

import (
	"errors"
	"time"
)

// ErrWriteConflict 乐观锁版本冲突（可由上层整体重试）
var ErrWriteConflict = errors.New("write conflict: record was modified concurrently")

// ErrInsufficientStock 站点库存不足
var ErrInsufficientStock = errors.New("insufficient stock at site")

// OrderRequestListFilter 查询订单列表的过滤条件
type OrderRequestListFilter struct {
	Page            int
	PageSize        int
	TenantID        uint
	Status          string
	LeastItemStatus string
	ProjectID       *uint
	Search          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// ItemListFilter 查询目录条目列表的过滤条件
type ItemListFilter struct {
	Page       int
	PageSize   int
	TenantID   uint
	CategoryID *uint
	Search     string
}
