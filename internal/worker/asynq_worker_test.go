package worker

import (
	"context"
	"testing"

	"github.com/orderbridge/internal/constants"

	"github.com/hibiken/asynq"
)

func TestRegisterNilSafe(t *testing.T) {
	var consumer *Consumer
	consumer.Register(nil)
	NewConsumer(nil).Register(nil)

	mux := asynq.NewServeMux()
	NewConsumer(nil).Register(mux)
}

func TestHandleOrderStatusEmailBadPayload(t *testing.T) {
	consumer := NewConsumer(nil)
	task := asynq.NewTask(constants.TaskOrderStatusEmail, []byte("{not json"))
	if err := consumer.handleOrderStatusEmail(context.Background(), task); err == nil {
		t.Fatal("malformed payload must surface an error")
	}
}

func TestHandleOrderStatusEmailSkipsEmptyIDs(t *testing.T) {
	consumer := NewConsumer(nil)
	task := asynq.NewTask(constants.TaskOrderStatusEmail, []byte(`{"tenant_id":0,"order_request_id":0}`))
	if err := consumer.handleOrderStatusEmail(context.Background(), task); err != nil {
		t.Fatalf("empty ids must be skipped, got %v", err)
	}
	if err := consumer.handleOrderStatusEmail(context.Background(), nil); err != nil {
		t.Fatalf("nil task must be skipped, got %v", err)
	}
}

func TestHandleOrderAutoCloseBadPayload(t *testing.T) {
	consumer := NewConsumer(nil)
	task := asynq.NewTask(constants.TaskOrderRequestAutoClose, []byte("{not json"))
	if err := consumer.handleOrderAutoClose(context.Background(), task); err == nil {
		t.Fatal("malformed payload must surface an error")
	}
}

func TestHandleOrderAutoCloseSkipsEmptyIDs(t *testing.T) {
	consumer := NewConsumer(nil)
	task := asynq.NewTask(constants.TaskOrderRequestAutoClose, []byte(`{"tenant_id":0,"order_request_id":0,"schedule_id":"x"}`))
	if err := consumer.handleOrderAutoClose(context.Background(), task); err != nil {
		t.Fatalf("empty ids must be skipped, got %v", err)
	}
}
