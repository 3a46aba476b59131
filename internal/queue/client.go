package queue

import (
	"fmt"
	"time"

	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/logger"

	"github.com/hibiken/asynq"
)

// Client 异步任务投递客户端
//
// 队列关闭时所有投递都降级为日志，不影响主流程。
type Client struct {
	client  *asynq.Client
	enabled bool
}

// NewClient 创建任务投递客户端
func NewClient(cfg config.QueueConfig) *Client {
	if !cfg.Enabled {
		logger.Warnw("queue_disabled", "reason", "queue.enabled=false")
		return &Client{enabled: false}
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{client: client, enabled: true}
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	concurrency := 10
	if cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{constants.QueueDefault: 1}
	if len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

// Close 释放连接
func (c *Client) Close() {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		logger.Warnw("queue_client_close_failed", "error", err)
	}
}

// EnqueueStatusEmail 投递订单状态邮件任务
func (c *Client) EnqueueStatusEmail(payload StatusEmailPayload) error {
	if c == nil || !c.enabled {
		logger.Debugw("queue_skip_status_email",
			"order_request_id", payload.OrderRequestID,
			"event", payload.Event,
		)
		return nil
	}
	task, err := NewStatusEmailTask(payload)
	if err != nil {
		return err
	}
	info, err := c.client.Enqueue(task,
		asynq.Queue(constants.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}
	logger.Debugw("queue_status_email_enqueued",
		"task_id", info.ID,
		"order_request_id", payload.OrderRequestID,
		"event", payload.Event,
	)
	return nil
}

// ScheduleAutoClose 在指定时刻投递订单自动关闭任务
func (c *Client) ScheduleAutoClose(payload AutoClosePayload, at time.Time) error {
	if c == nil || !c.enabled {
		logger.Debugw("queue_skip_auto_close",
			"order_request_id", payload.OrderRequestID,
			"invoke_at", at,
		)
		return nil
	}
	task, err := NewAutoCloseTask(payload)
	if err != nil {
		return err
	}
	info, err := c.client.Enqueue(task,
		asynq.Queue(constants.QueueDefault),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}
	logger.Infow("queue_auto_close_scheduled",
		"task_id", info.ID,
		"order_request_id", payload.OrderRequestID,
		"schedule_id", payload.ScheduleID,
		"invoke_at", at,
	)
	return nil
}
