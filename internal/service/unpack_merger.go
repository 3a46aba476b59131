package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

// UnpackPlan 拆包计划，由调用方负责落库
type UnpackPlan struct {
	Updated []*models.OrderRequestItem // 被修改的现有订单项（含吸收数量的兄弟项）
	Created []*models.OrderRequestItem // 新建的订单项
	Deleted []*models.OrderRequestItem // 整项并入兄弟项后需软删除的订单项
}

// Touched 返回计划涉及的全部订单项
func (p *UnpackPlan) Touched() []*models.OrderRequestItem {
	out := make([]*models.OrderRequestItem, 0, len(p.Updated)+len(p.Created)+len(p.Deleted))
	out = append(out, p.Updated...)
	out = append(out, p.Created...)
	out = append(out, p.Deleted...)
	return out
}

// PlanUnpack 计算拆包合并
//
// 对每个引用被拆物流号的订单项判定整拆还是部分拆：整拆时优先把数量
// 并入同 SKU、同项目、状态等于拆包前状态的兄弟项并软删除本项，找不到
// 兄弟项则就地回退状态；部分拆时按被拆腿数量扣减，剩余腿重新推导
// 状态，拆出数量同样并入兄弟项或新建订单项。被拆的物流腿一律打上
// unpacked 标记移入历史。
func PlanUnpack(items []models.OrderRequestItem, trackingIDs []string, actor ActorContext, now time.Time) (*UnpackPlan, error) {
	unpackSet := make(map[string]bool, len(trackingIDs))
	for _, id := range trackingIDs {
		unpackSet[id] = true
	}

	plan := &UnpackPlan{}
	updatedSeen := make(map[uint]bool)
	appendUpdated := func(item *models.OrderRequestItem) {
		if updatedSeen[item.ID] {
			return
		}
		updatedSeen[item.ID] = true
		plan.Updated = append(plan.Updated, item)
	}
	for i := range items {
		item := &items[i]
		matched, remaining := splitLegs(item.TrackingDetailsJSON, unpackSet)
		if len(matched) == 0 {
			continue
		}

		prePack := prePackStatus(item.StatusHistoryJSON)
		entry := models.StatusChange{
			Status:    prePack,
			At:        now,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName,
			Reason:    constants.HistoryReasonUnpacked,
		}

		if len(remaining) == 0 {
			// 整拆
			sibling := findSibling(items, item, prePack)
			item.TrackingHistoryJSON = mergeTrackingLegs(item.TrackingHistoryJSON, retireUnpackedLegs(matched, now))
			item.TrackingDetailsJSON = models.TrackingDetailList{}
			if sibling != nil {
				sibling.Quantity += item.Quantity
				sibling.Notes = mergeNotes(sibling.Notes, item.Notes)
				sibling.UpdatedByID = actor.ActorID
				appendUpdated(sibling)

				// 数量已并入兄弟项，墓碑记录清零避免重复计数
				item.Quantity = 0
				item.Status = constants.ItemStatusCancelled
				item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), models.StatusChange{
					Status:    constants.ItemStatusCancelled,
					At:        now,
					ActorID:   actor.ActorID,
					ActorName: actor.DisplayName,
					Reason:    constants.HistoryReasonUnpacked,
				})
				item.UpdatedByID = actor.ActorID
				plan.Deleted = append(plan.Deleted, item)
				continue
			}
			item.Status = prePack
			item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), entry)
			item.UpdatedByID = actor.ActorID
			appendUpdated(item)
			continue
		}

		// 部分拆
		quantityUnpacked := 0
		for _, leg := range matched {
			quantityUnpacked += leg.Quantity
		}
		if quantityUnpacked <= 0 || quantityUnpacked >= item.Quantity {
			return nil, fmt.Errorf("%w: unpack quantity %d out of range for item %d",
				ErrQuantityInvalid, quantityUnpacked, item.ID)
		}

		newStatus, err := StatusFromTracking(remaining, item.IsReturnLeg())
		if err != nil {
			return nil, err
		}
		item.Quantity -= quantityUnpacked
		item.TrackingDetailsJSON = remaining
		item.TrackingHistoryJSON = mergeTrackingLegs(item.TrackingHistoryJSON, retireUnpackedLegs(matched, now))
		if newStatus != item.Status {
			item.Status = newStatus
			item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), models.StatusChange{
				Status:    newStatus,
				At:        now,
				ActorID:   actor.ActorID,
				ActorName: actor.DisplayName,
				Reason:    constants.HistoryReasonUnpacked,
			})
		}
		item.UpdatedByID = actor.ActorID
		appendUpdated(item)

		sibling := findSibling(items, item, prePack)
		if sibling != nil {
			sibling.Quantity += quantityUnpacked
			sibling.UpdatedByID = actor.ActorID
			appendUpdated(sibling)
			continue
		}
		created := &models.OrderRequestItem{
			OrderRequestID:      item.OrderRequestID,
			TenantID:            item.TenantID,
			ItemID:              item.ItemID,
			Type:                item.Type,
			SKU:                 item.SKU,
			Title:               item.Title,
			Description:         item.Description,
			ImageURL:            item.ImageURL,
			Quantity:            quantityUnpacked,
			Cost:                item.Cost,
			Status:              prePack,
			StatusHistoryJSON:   append(item.StatusHistoryJSON.Clone(), entry),
			TrackingDetailsJSON: models.TrackingDetailList{},
			TrackingHistoryJSON: retireUnpackedLegs(matched, now),
			ProjectID:           item.ProjectID,
			Version:             1,
			UpdatedByID:         actor.ActorID,
		}
		plan.Created = append(plan.Created, created)
	}
	return plan, nil
}

// splitLegs 把活跃物流腿按是否在拆包集合中分成两组
func splitLegs(active models.TrackingDetailList, unpackSet map[string]bool) (matched, remaining models.TrackingDetailList) {
	for _, leg := range active {
		if unpackSet[leg.TrackingID] {
			matched = append(matched, leg)
		} else {
			remaining = append(remaining, leg)
		}
	}
	return matched, remaining
}

// prePackStatus 取订单项打包前的状态，即状态历史的倒数第二条
func prePackStatus(history models.StatusHistory) string {
	if len(history) < 2 {
		return constants.ItemStatusOpen
	}
	return history[len(history)-2].Status
}

// findSibling 在同订单内寻找可吸收拆包数量的兄弟项
//
// 条件：同 SKU、同项目、状态等于拆包前状态。被拆的项本身不会匹配到自己。
func findSibling(items []models.OrderRequestItem, item *models.OrderRequestItem, status string) *models.OrderRequestItem {
	for i := range items {
		candidate := &items[i]
		if candidate.ID == item.ID {
			continue
		}
		if candidate.SKU != item.SKU || candidate.Status != status {
			continue
		}
		if !sameProject(candidate.ProjectID, item.ProjectID) {
			continue
		}
		return candidate
	}
	return nil
}

// sameProject 比较两个可空项目 ID
func sameProject(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// retireUnpackedLegs 把被拆的物流腿打上 unpacked 标记
func retireUnpackedLegs(legs models.TrackingDetailList, now time.Time) models.TrackingDetailList {
	out := legs.Clone()
	for i := range out {
		out[i].Status = constants.TrackingStatusUnpacked
		out[i].UpdatedAt = now
	}
	return out
}

// mergeNotes 合并备注
func mergeNotes(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return strings.TrimSpace(a) + "\n" + strings.TrimSpace(b)
	}
}
