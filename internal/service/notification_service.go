package service

import (
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/queue"
)

// NotificationService 订单通知
//
// 通知在事务提交后触发，失败只记日志不回滚也不重抛，投递与收件人
// 解析都交给异步任务完成。
type NotificationService struct {
	queue *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(queueClient *queue.Client) *NotificationService {
	return &NotificationService{queue: queueClient}
}

// OrderStatusChanged 订单状态变化后投递通知任务
func (s *NotificationService) OrderStatusChanged(order *models.OrderRequest, event string) {
	if s == nil || order == nil {
		return
	}
	err := s.queue.EnqueueStatusEmail(queue.StatusEmailPayload{
		TenantID:        order.TenantID,
		OrderRequestID:  order.ID,
		Event:           event,
		LeastItemStatus: order.LeastItemStatus,
	})
	if err != nil {
		logger.Warnw("notify_order_status_enqueue_failed",
			"order_request_id", order.ID,
			"tenant_id", order.TenantID,
			"event", event,
			"error", err,
		)
	}
}
