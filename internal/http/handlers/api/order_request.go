package api

import (
	"strconv"
	"strings"

	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/repository"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid id", nil)
		return 0, false
	}
	return uint(id), true
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var input service.CreateOrderRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderRequestService.Create(actor, input)
	if err != nil {
		respondOrderError(c, err, "order create failed")
		return
	}
	response.Success(c, order)
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderRequestService.Get(actor, orderID)
	if err != nil {
		respondOrderError(c, err, "order fetch failed")
		return
	}
	response.Success(c, order)
}

// ListOrders 订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.OrderRequestListFilter{
		Page:            page,
		PageSize:        pageSize,
		TenantID:        actor.TenantID,
		Status:          strings.TrimSpace(c.Query("status")),
		LeastItemStatus: strings.TrimSpace(c.Query("least_item_status")),
		Search:          strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("project_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil && parsed > 0 {
			projectID := uint(parsed)
			filter.ProjectID = &projectID
		}
	}

	orders, total, err := h.OrderRequestService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "order list failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// UpdateItemStatusRequest 订单项状态变更入参
type UpdateItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateItemStatus 变更订单项状态
func (h *Handler) UpdateItemStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderRequestService.UpdateItemStatus(actor, orderID, itemID, req.Status, req.Note)
	if err != nil {
		respondOrderError(c, err, "status update failed")
		return
	}
	response.Success(c, order)
}

// UpdateItem 编辑订单项
func (h *Handler) UpdateItem(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var input service.UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderRequestService.UpdateItem(actor, orderID, itemID, input)
	if err != nil {
		respondOrderError(c, err, "item update failed")
		return
	}
	response.Success(c, order)
}

// ReturnOrderRequest 退货入参
type ReturnOrderRequest struct {
	Items []service.ReturnRequest `json:"items" binding:"required"`
}

// ReturnOrder 退货
func (h *Handler) ReturnOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReturnOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderRequestService.Return(actor, orderID, req.Items)
	if err != nil {
		respondOrderError(c, err, "return failed")
		return
	}
	response.Success(c, order)
}

// UnpackOrderRequest 拆包入参
type UnpackOrderRequest struct {
	TrackingIDs []string `json:"tracking_ids" binding:"required"`
}

// UnpackOrder 拆包
func (h *Handler) UnpackOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UnpackOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderRequestService.Unpack(actor, orderID, req.TrackingIDs)
	if err != nil {
		respondOrderError(c, err, "unpack failed")
		return
	}
	response.Success(c, order)
}

// PickOrderRequest 拣货入参
type PickOrderRequest struct {
	Picks []service.PickInput `json:"picks" binding:"required"`
}

// PickOrder 拣货
func (h *Handler) PickOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PickOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.PickService.Pick(actor, orderID, req.Picks)
	if err != nil {
		respondOrderError(c, err, "pick failed")
		return
	}
	response.Success(c, order)
}

// ContainerActionRequest 按物流号推进容器的入参
type ContainerActionRequest struct {
	TrackingID string `json:"tracking_id" binding:"required"`
}

// ShipOrder 出库
func (h *Handler) ShipOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ContainerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.PickService.Ship(actor, orderID, req.TrackingID)
	if err != nil {
		respondOrderError(c, err, "ship failed")
		return
	}
	response.Success(c, order)
}

// DeliverOrder 签收
func (h *Handler) DeliverOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ContainerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.PickService.Deliver(actor, orderID, req.TrackingID)
	if err != nil {
		respondOrderError(c, err, "deliver failed")
		return
	}
	response.Success(c, order)
}

// BlockOrder 加拣货锁
func (h *Handler) BlockOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderRequestService.Block(actor, orderID)
	if err != nil {
		respondOrderError(c, err, "block failed")
		return
	}
	response.Success(c, order)
}

// UnblockOrder 解拣货锁
func (h *Handler) UnblockOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderRequestService.Unblock(actor, orderID)
	if err != nil {
		respondOrderError(c, err, "unblock failed")
		return
	}
	response.Success(c, order)
}

// CloseOrder 手动关闭订单
func (h *Handler) CloseOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderRequestService.Close(actor, orderID)
	if err != nil {
		respondOrderError(c, err, "close failed")
		return
	}
	response.Success(c, order)
}

// DeleteOrder 软删除订单
func (h *Handler) DeleteOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.OrderRequestService.Delete(actor, orderID); err != nil {
		respondOrderError(c, err, "delete failed")
		return
	}
	response.Success(c, nil)
}
