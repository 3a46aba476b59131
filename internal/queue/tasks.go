package queue

import (
	"encoding/json"

	"github.com/orderbridge/internal/constants"

	"github.com/hibiken/asynq"
)

// StatusEmailPayload 订单状态邮件任务载荷
type StatusEmailPayload struct {
	TenantID        uint   `json:"tenant_id"`
	OrderRequestID  uint   `json:"order_request_id"`
	Event           string `json:"event"`
	LeastItemStatus string `json:"least_item_status"`
}

// NewStatusEmailTask 构造订单状态邮件任务
func NewStatusEmailTask(payload StatusEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(constants.TaskOrderStatusEmail, data), nil
}

// AutoClosePayload 订单自动关闭任务载荷
//
// ScheduleID 用于幂等：执行时与订单当前的 ScheduleID 比对，不一致
// 说明预约已被更晚的交付覆盖，任务直接放弃。
type AutoClosePayload struct {
	TenantID       uint   `json:"tenant_id"`
	OrderRequestID uint   `json:"order_request_id"`
	ScheduleID     string `json:"schedule_id"`
}

// NewAutoCloseTask 构造订单自动关闭任务
func NewAutoCloseTask(payload AutoClosePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(constants.TaskOrderRequestAutoClose, data), nil
}
