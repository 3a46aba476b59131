package service

import (
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

// StatusFromTracking 由活跃物流明细推导订单项状态
//
// 优先级 packed > out_for_delivery > delivered；退货腿的 delivered 对应
// returned。调用前 unpacked 腿必须已经移入历史，只剩 unpacked 腿属于
// 不变量被破坏，返回错误。
func StatusFromTracking(active models.TrackingDetailList, isReturnLeg bool) (string, error) {
	var hasPacked, hasOutForDelivery, hasDelivered bool
	for _, leg := range active {
		switch leg.Status {
		case constants.TrackingStatusPacked:
			hasPacked = true
		case constants.TrackingStatusOutForDelivery:
			hasOutForDelivery = true
		case constants.TrackingStatusDelivered:
			hasDelivered = true
		}
	}

	switch {
	case hasPacked:
		return constants.ItemStatusPacked, nil
	case hasOutForDelivery:
		return constants.ItemStatusOutForDelivery, nil
	case hasDelivered:
		if isReturnLeg {
			return constants.ItemStatusReturned, nil
		}
		return constants.ItemStatusDelivered, nil
	default:
		return "", ErrNoActiveTracking
	}
}
