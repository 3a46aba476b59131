package service

import (
	"testing"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

func skuItem(status string) models.OrderRequestItem {
	return models.OrderRequestItem{Type: constants.ItemTypeInventory, Status: status}
}

func noSKUItem(status string) models.OrderRequestItem {
	return models.OrderRequestItem{Type: constants.ItemTypeNoSKU, Status: status}
}

func TestCalcLeastItemStatus(t *testing.T) {
	cases := []struct {
		name  string
		items []models.OrderRequestItem
		want  string
		ok    bool
	}{
		{
			name:  "any open wins",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusOpen), skuItem(constants.ItemStatusDelivered)},
			want:  constants.ItemStatusOpen,
			ok:    true,
		},
		{
			name:  "back_ordered before packed",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusBackOrdered), skuItem(constants.ItemStatusPacked)},
			want:  constants.ItemStatusBackOrdered,
			ok:    true,
		},
		{
			name:  "packed before delivered",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusPacked), skuItem(constants.ItemStatusDelivered)},
			want:  constants.ItemStatusPacked,
			ok:    true,
		},
		{
			name:  "delivered before returned",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusDelivered), skuItem(constants.ItemStatusReturned)},
			want:  constants.ItemStatusDelivered,
			ok:    true,
		},
		{
			name:  "unresolved no_sku drags progress back",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusDelivered), noSKUItem(constants.ItemStatusOpen)},
			want:  constants.ItemStatusBackOrdered,
			ok:    true,
		},
		{
			name:  "resolved no_sku no longer blocks",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusDelivered), noSKUItem(constants.ItemStatusCancelled)},
			want:  constants.ItemStatusDelivered,
			ok:    true,
		},
		{
			name:  "cancelled over remaining closed",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusCancelled), skuItem(constants.ItemStatusClosed)},
			want:  constants.ItemStatusCancelled,
			ok:    true,
		},
		{
			name:  "all closed",
			items: []models.OrderRequestItem{skuItem(constants.ItemStatusClosed), skuItem(constants.ItemStatusClosed)},
			want:  constants.ItemStatusClosed,
			ok:    true,
		},
		{
			name:  "no_sku only open",
			items: []models.OrderRequestItem{noSKUItem(constants.ItemStatusOpen)},
			want:  constants.ItemStatusBackOrdered,
			ok:    true,
		},
		{
			name:  "no_sku only cancelled",
			items: []models.OrderRequestItem{noSKUItem(constants.ItemStatusCancelled)},
			want:  constants.ItemStatusCancelled,
			ok:    true,
		},
		{
			name:  "no_sku only closed",
			items: []models.OrderRequestItem{noSKUItem(constants.ItemStatusClosed)},
			want:  constants.ItemStatusClosed,
			ok:    true,
		},
		{
			name:  "no_sku only delivered has no rollup",
			items: []models.OrderRequestItem{noSKUItem(constants.ItemStatusDelivered)},
			ok:    false,
		},
		{
			name: "no items has no rollup",
			ok:   false,
		},
	}
	for _, tc := range cases {
		got, ok := CalcLeastItemStatus(tc.items)
		if ok != tc.ok {
			t.Fatalf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("%s: status = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPlanClose(t *testing.T) {
	now := time.Now()
	grace := 30 * 24 * time.Hour

	deliveredItem := func(at time.Time) models.OrderRequestItem {
		return models.OrderRequestItem{
			Type:   constants.ItemTypeInventory,
			Status: constants.ItemStatusDelivered,
			StatusHistoryJSON: models.StatusHistory{
				{Status: constants.ItemStatusOpen, At: at.Add(-time.Hour)},
				{Status: constants.ItemStatusPacked, At: at.Add(-time.Minute)},
				{Status: constants.ItemStatusDelivered, At: at},
			},
		}
	}

	if plan := PlanClose(nil, now, grace); plan.Action != CloseNotEligible {
		t.Fatalf("empty order should not be eligible, got %v", plan.Action)
	}

	open := []models.OrderRequestItem{skuItem(constants.ItemStatusOpen), deliveredItem(now)}
	if plan := PlanClose(open, now, grace); plan.Action != CloseNotEligible {
		t.Fatalf("order with open item should not be eligible, got %v", plan.Action)
	}

	settled := []models.OrderRequestItem{skuItem(constants.ItemStatusClosed), skuItem(constants.ItemStatusCancelled)}
	if plan := PlanClose(settled, now, grace); plan.Action != CloseNow {
		t.Fatalf("fully settled order should close now, got %v", plan.Action)
	}

	deliveredAt := now.Add(-time.Hour)
	recent := []models.OrderRequestItem{deliveredItem(deliveredAt)}
	plan := PlanClose(recent, now, grace)
	if plan.Action != CloseSchedule {
		t.Fatalf("recent delivery should schedule close, got %v", plan.Action)
	}
	if !plan.ReferenceTime.Equal(deliveredAt.Add(grace)) {
		t.Fatalf("schedule time = %v, want %v", plan.ReferenceTime, deliveredAt.Add(grace))
	}

	stale := []models.OrderRequestItem{deliveredItem(now.Add(-grace - time.Hour))}
	if plan := PlanClose(stale, now, grace); plan.Action != CloseNow {
		t.Fatalf("delivery past grace should close now, got %v", plan.Action)
	}

	// delivered 状态但没有签收历史时保守地不关闭
	noHistory := []models.OrderRequestItem{{Type: constants.ItemTypeInventory, Status: constants.ItemStatusDelivered}}
	if plan := PlanClose(noHistory, now, grace); plan.Action != CloseNotEligible {
		t.Fatalf("delivered without history should not be eligible, got %v", plan.Action)
	}
}
