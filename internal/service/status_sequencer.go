package service

import (
	"fmt"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

// statusSequence 状态推进的规范序列。OPEN 合法地出现两次：
// 条目在打包前可以在 OPEN 与 BACK_ORDERED 之间往返。
var statusSequence = []string{
	constants.ItemStatusOpen,
	constants.ItemStatusBackOrdered,
	constants.ItemStatusOpen,
	constants.ItemStatusCancelled,
	constants.ItemStatusPacked,
	constants.ItemStatusOutForDelivery,
	constants.ItemStatusDelivered,
	constants.ItemStatusReturned,
	constants.ItemStatusClosed,
}

// TransitionResult 状态转移校验结论
type TransitionResult int

const (
	// TransitionApply 转移合法，应当落库
	TransitionApply TransitionResult = iota
	// TransitionNoop 目标状态与当前状态相同，视为成功但不产生变更
	TransitionNoop
)

// sequenceFirstIndex 返回状态在规范序列中的首个下标，不存在返回 -1
func sequenceFirstIndex(status string) int {
	for i, s := range statusSequence {
		if s == status {
			return i
		}
	}
	return -1
}

// sequenceLastIndex 返回状态在规范序列中的最后下标，不存在返回 -1
func sequenceLastIndex(status string) int {
	for i := len(statusSequence) - 1; i >= 0; i-- {
		if statusSequence[i] == status {
			return i
		}
	}
	return -1
}

// ValidateTransition 校验一次状态转移是否合法
//
// PACKED 与 OUT_FOR_DELIVERY 只能由拣货/发货流程产生，从这里请求一律拒绝。
// 其余规则按目标状态逐一判定，最后统一做序列单调性检查：目标状态在规范
// 序列中的位置不得早于当前状态（OPEN 与 BACK_ORDERED 的往返除外，该往返
// 已被 OPEN 的第二次出现覆盖）。
func ValidateTransition(history models.StatusHistory, target string) (TransitionResult, error) {
	if sequenceLastIndex(target) < 0 {
		return TransitionApply, fmt.Errorf("%w: %s", ErrInvalidStatus, target)
	}

	last, ok := history.Last()
	if !ok {
		return TransitionApply, ErrEmptyStatusHistory
	}
	current := last.Status

	if target == current {
		return TransitionNoop, nil
	}

	switch target {
	case constants.ItemStatusPacked, constants.ItemStatusOutForDelivery:
		return TransitionApply, fmt.Errorf("%w: %s is only set by the pick and ship workflows", ErrInvalidTransition, target)

	case constants.ItemStatusDelivered:
		if current != constants.ItemStatusPacked && current != constants.ItemStatusOutForDelivery {
			return TransitionApply, fmt.Errorf("%w: delivered requires a packed or out_for_delivery item", ErrInvalidTransition)
		}
		return TransitionApply, nil

	case constants.ItemStatusReturned:
		if !history.Has(constants.ItemStatusDelivered) {
			return TransitionApply, fmt.Errorf("%w: returned requires a prior delivery", ErrInvalidTransition)
		}
		if current != constants.ItemStatusPacked &&
			current != constants.ItemStatusOutForDelivery &&
			current != constants.ItemStatusDelivered {
			return TransitionApply, fmt.Errorf("%w: returned requires the return re-pack to have occurred", ErrInvalidTransition)
		}
		return TransitionApply, nil

	case constants.ItemStatusCancelled:
		if current == constants.ItemStatusPacked ||
			current == constants.ItemStatusOutForDelivery ||
			current == constants.ItemStatusDelivered {
			return TransitionApply, fmt.Errorf("%w: cannot cancel a shipped item", ErrInvalidTransition)
		}

	case constants.ItemStatusClosed:
		if (current == constants.ItemStatusPacked || current == constants.ItemStatusOutForDelivery) &&
			!history.Has(constants.ItemStatusDelivered) {
			return TransitionApply, fmt.Errorf("%w: cannot close an item still in transit with no delivery record", ErrInvalidTransition)
		}
	}

	if sequenceLastIndex(target) < sequenceFirstIndex(current) {
		return TransitionApply, fmt.Errorf("%w: item is already %s and cannot regress to %s", ErrInvalidTransition, current, target)
	}
	return TransitionApply, nil
}
