package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/provider"
	"github.com/orderbridge/internal/queue"
	"github.com/orderbridge/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(constants.TaskOrderStatusEmail, c.handleOrderStatusEmail)
	mux.HandleFunc(constants.TaskOrderRequestAutoClose, c.handleOrderAutoClose)
}

func (c *Consumer) handleOrderStatusEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.StatusEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderRequestID == 0 || payload.TenantID == 0 {
		logger.Debugw("worker_order_status_email_skip_invalid_payload",
			"order_request_id", payload.OrderRequestID,
			"tenant_id", payload.TenantID,
		)
		return nil
	}
	order, err := c.OrderRequestRepo.GetByID(payload.TenantID, payload.OrderRequestID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_order_failed",
			"order_request_id", payload.OrderRequestID,
			"error", err,
		)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_status_email_skip_order_not_found", "order_request_id", payload.OrderRequestID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_order_status_email_skip_email_service_nil", "order_request_id", order.ID)
		return nil
	}

	actors, err := c.ActorRepo.ListByTenant(order.TenantID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_actors_failed",
			"order_request_id", order.ID,
			"tenant_id", order.TenantID,
			"error", err,
		)
		return err
	}
	recipients := make([]string, 0, len(actors))
	for _, actor := range actors {
		if actor.Role != constants.ActorRoleAdmin {
			continue
		}
		email := strings.TrimSpace(actor.Email)
		if email == "" {
			continue
		}
		recipients = append(recipients, email)
	}
	if len(recipients) == 0 {
		logger.Debugw("worker_order_status_email_skip_no_recipients",
			"order_request_id", order.ID,
			"tenant_id", order.TenantID,
		)
		return nil
	}

	itemLines := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		itemLines = append(itemLines, fmt.Sprintf("%s x%d (%s)", item.Title, item.Quantity, item.Status))
	}
	input := service.OrderStatusEmailInput{
		OrderRequestID:  order.ID,
		Title:           order.Title,
		Event:           payload.Event,
		LeastItemStatus: payload.LeastItemStatus,
		ItemLines:       itemLines,
	}
	for _, recipient := range recipients {
		if err := c.EmailService.SendOrderStatusEmail(recipient, input); err != nil {
			if errors.Is(err, service.ErrEmailServiceDisabled) || errors.Is(err, service.ErrEmailServiceNotConfigured) {
				logger.Debugw("worker_order_status_email_skip_disabled", "order_request_id", order.ID)
				return nil
			}
			logger.Warnw("worker_order_status_email_send_failed",
				"order_request_id", order.ID,
				"receiver_email", recipient,
				"event", payload.Event,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleOrderAutoClose(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_auto_close_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AutoClosePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_auto_close_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderRequestID == 0 || payload.TenantID == 0 {
		logger.Debugw("worker_order_auto_close_skip_invalid_payload",
			"order_request_id", payload.OrderRequestID,
			"tenant_id", payload.TenantID,
		)
		return nil
	}
	err := c.OrderRequestService.AutoClose(payload.TenantID, payload.OrderRequestID, payload.ScheduleID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		logger.Debugw("worker_order_auto_close_skip_order_not_found", "order_request_id", payload.OrderRequestID)
		return nil
	default:
		logger.Warnw("worker_order_auto_close_failed",
			"order_request_id", payload.OrderRequestID,
			"schedule_id", payload.ScheduleID,
			"error", err,
		)
		return err
	}
}
