package service

import (
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

// CalcLeastItemStatus 计算订单的最低进度汇总状态
//
// 带 SKU 的订单项主导汇总，因为它们代表实物履约风险；no_sku 项未解决时
// 允许把汇总压回 BACK_ORDERED，但一旦解决便不再阻碍进度。此处的分支
// 顺序沿用线上行为，不做"更合理"的改写。
// 第二个返回值为 false 表示无法得出汇总，调用方保持原值不变。
func CalcLeastItemStatus(items []models.OrderRequestItem) (string, bool) {
	var withSKU, noSKU []models.OrderRequestItem
	for _, item := range items {
		if item.Type == constants.ItemTypeNoSKU {
			noSKU = append(noSKU, item)
		} else {
			withSKU = append(withSKU, item)
		}
	}

	if len(withSKU) == 0 {
		switch {
		case anyStatus(noSKU, constants.ItemStatusOpen, constants.ItemStatusBackOrdered):
			return constants.ItemStatusBackOrdered, true
		case anyStatus(noSKU, constants.ItemStatusCancelled):
			return constants.ItemStatusCancelled, true
		case allStatus(noSKU, constants.ItemStatusClosed):
			return constants.ItemStatusClosed, true
		default:
			return "", false
		}
	}

	switch {
	case anyStatus(withSKU, constants.ItemStatusOpen):
		return constants.ItemStatusOpen, true
	case anyStatus(withSKU, constants.ItemStatusBackOrdered):
		return constants.ItemStatusBackOrdered, true
	case len(noSKU) > 0 && anyStatus(items, constants.ItemStatusOpen, constants.ItemStatusBackOrdered):
		return constants.ItemStatusBackOrdered, true
	case anyStatus(withSKU, constants.ItemStatusPacked):
		return constants.ItemStatusPacked, true
	case anyStatus(withSKU, constants.ItemStatusOutForDelivery):
		return constants.ItemStatusOutForDelivery, true
	case anyStatus(withSKU, constants.ItemStatusDelivered):
		return constants.ItemStatusDelivered, true
	case anyStatus(withSKU, constants.ItemStatusReturned):
		return constants.ItemStatusReturned, true
	case anyStatus(withSKU, constants.ItemStatusCancelled):
		return constants.ItemStatusCancelled, true
	default:
		return constants.ItemStatusClosed, true
	}
}

// anyStatus 判断集合中是否存在任一给定状态的订单项
func anyStatus(items []models.OrderRequestItem, statuses ...string) bool {
	for _, item := range items {
		for _, status := range statuses {
			if item.Status == status {
				return true
			}
		}
	}
	return false
}

// allStatus 判断集合中全部订单项是否处于给定状态
func allStatus(items []models.OrderRequestItem, status string) bool {
	for _, item := range items {
		if item.Status != status {
			return false
		}
	}
	return len(items) > 0
}

// CloseAction 自动关闭决策
type CloseAction int

const (
	// CloseNotEligible 订单尚有未终结的订单项，不关闭
	CloseNotEligible CloseAction = iota
	// CloseNow 立即关闭
	CloseNow
	// CloseSchedule 在 ReferenceTime 预约关闭
	CloseSchedule
)

// ClosePlan 关闭计划：Action 为 CloseSchedule 时 ReferenceTime 是预约时刻
type ClosePlan struct {
	Action        CloseAction
	ReferenceTime time.Time
}

// PlanClose 判定订单是否应当关闭以及何时关闭
//
// 仅当全部订单项处于 closed/cancelled/delivered/returned 时才有资格。
// 全部已是 closed/cancelled 时立即关闭；否则以最近一次 delivered 的
// 历史时间为基准，超过 graceDuration 立即关闭，未超过则预约到期时刻。
func PlanClose(items []models.OrderRequestItem, now time.Time, graceDuration time.Duration) ClosePlan {
	if len(items) == 0 {
		return ClosePlan{Action: CloseNotEligible}
	}

	settledOnly := true
	for _, item := range items {
		switch item.Status {
		case constants.ItemStatusClosed, constants.ItemStatusCancelled:
		case constants.ItemStatusDelivered, constants.ItemStatusReturned:
			settledOnly = false
		default:
			return ClosePlan{Action: CloseNotEligible}
		}
	}
	if settledOnly {
		return ClosePlan{Action: CloseNow}
	}

	var latestDelivered time.Time
	for _, item := range items {
		for _, entry := range item.StatusHistoryJSON {
			if entry.Status == constants.ItemStatusDelivered && entry.At.After(latestDelivered) {
				latestDelivered = entry.At
			}
		}
	}
	if latestDelivered.IsZero() {
		return ClosePlan{Action: CloseNotEligible}
	}

	deadline := latestDelivered.Add(graceDuration)
	if now.After(deadline) {
		return ClosePlan{Action: CloseNow}
	}
	return ClosePlan{Action: CloseSchedule, ReferenceTime: deadline}
}
