package service

import (
	"fmt"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

// ReturnRequest 一条退货请求
type ReturnRequest struct {
	ItemID   uint `json:"item_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required"`
}

// ReturnLeg 退货计划中需要重新打包发运的一腿
type ReturnLeg struct {
	Item         *models.OrderRequestItem // 承载退货数量的订单项（原项或新建项）
	Quantity     int
	OriginSiteID uint // 原拣货站点，按站点分容器发运
}

// ReturnPlan 退货拆分计划，由调用方负责落库与发运
type ReturnPlan struct {
	Updated []*models.OrderRequestItem
	Created []*models.OrderRequestItem
	Legs    []ReturnLeg
}

// PlanReturn 计算退货拆分
//
// 整单退货时原项就地转为退货腿；部分退货时原项扣减数量并新建一条
// 退货项，血缘经 ParentOrderRequestItemID 指回原项。拆分前后数量
// 守恒：原数量 == 保留数量 + 退货数量。
func PlanReturn(items []models.OrderRequestItem, requests []ReturnRequest, actor ActorContext, now time.Time) (*ReturnPlan, error) {
	byID := make(map[uint]*models.OrderRequestItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	plan := &ReturnPlan{}
	for _, req := range requests {
		item, ok := byID[req.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: id=%d", ErrItemNotFound, req.ItemID)
		}
		if item.Status != constants.ItemStatusDelivered {
			return nil, fmt.Errorf("%w: id=%d status=%s", ErrItemNotDelivered, item.ID, item.Status)
		}
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: id=%d", ErrQuantityInvalid, item.ID)
		}
		if req.Quantity > item.Quantity {
			return nil, fmt.Errorf("%w: id=%d requested=%d delivered=%d",
				ErrReturnQuantityExceeded, item.ID, req.Quantity, item.Quantity)
		}

		entry := models.StatusChange{
			Status:    constants.ItemStatusPacked,
			At:        now,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName,
			Reason:    constants.HistoryReasonReturned,
		}
		originSiteID := originSiteOf(item)

		if req.Quantity == item.Quantity {
			// 整单退货：原项就地转为退货腿
			retiredLegs := retireTrackingLegs(item.TrackingDetailsJSON, now)
			item.TrackingHistoryJSON = mergeTrackingLegs(item.TrackingHistoryJSON, retiredLegs)
			item.TrackingDetailsJSON = models.TrackingDetailList{}
			item.Status = constants.ItemStatusPacked
			item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), entry)
			selfID := item.ID
			item.ParentOrderRequestItemID = &selfID
			item.UpdatedByID = actor.ActorID
			plan.Updated = append(plan.Updated, item)
			plan.Legs = append(plan.Legs, ReturnLeg{Item: item, Quantity: req.Quantity, OriginSiteID: originSiteID})
			continue
		}

		// 部分退货：原项保留剩余数量并维持 delivered，新建退货项
		item.Quantity -= req.Quantity
		item.UpdatedByID = actor.ActorID
		plan.Updated = append(plan.Updated, item)

		parentID := item.ID
		created := &models.OrderRequestItem{
			OrderRequestID:           item.OrderRequestID,
			TenantID:                 item.TenantID,
			ItemID:                   item.ItemID,
			Type:                     item.Type,
			SKU:                      item.SKU,
			Title:                    item.Title,
			Description:              item.Description,
			ImageURL:                 item.ImageURL,
			Quantity:                 req.Quantity,
			Cost:                     item.Cost,
			Status:                   constants.ItemStatusPacked,
			StatusHistoryJSON:        append(item.StatusHistoryJSON.Clone(), entry),
			TrackingDetailsJSON:      models.TrackingDetailList{},
			TrackingHistoryJSON:      mergeTrackingLegs(item.TrackingHistoryJSON.Clone(), item.TrackingDetailsJSON),
			ProjectID:                item.ProjectID,
			ParentOrderRequestItemID: &parentID,
			Version:                  1,
			UpdatedByID:              actor.ActorID,
		}
		plan.Created = append(plan.Created, created)
		plan.Legs = append(plan.Legs, ReturnLeg{Item: created, Quantity: req.Quantity, OriginSiteID: originSiteID})
	}
	return plan, nil
}

// originSiteOf 从物流明细中恢复原拣货站点
func originSiteOf(item *models.OrderRequestItem) uint {
	for _, leg := range item.TrackingDetailsJSON {
		if leg.SiteID != 0 {
			return leg.SiteID
		}
	}
	for _, leg := range item.TrackingHistoryJSON {
		if leg.SiteID != 0 {
			return leg.SiteID
		}
	}
	return 0
}

// retireTrackingLegs 把活跃物流腿整体转入历史
func retireTrackingLegs(active models.TrackingDetailList, now time.Time) models.TrackingDetailList {
	retired := active.Clone()
	for i := range retired {
		retired[i].UpdatedAt = now
	}
	return retired
}

// mergeTrackingLegs 合并物流腿集合，按物流号去重，已存在的保留原条目
func mergeTrackingLegs(dst, src models.TrackingDetailList) models.TrackingDetailList {
	out := dst.Clone()
	for _, leg := range src {
		if !out.HasTrackingID(leg.TrackingID) {
			out = append(out, leg)
		}
	}
	return out
}
