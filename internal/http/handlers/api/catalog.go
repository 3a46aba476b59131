package api

import (
	"strconv"
	"strings"

	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/repository"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateItem 创建目录条目
func (h *Handler) CreateItem(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var input service.CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	item, err := h.CatalogService.CreateItem(actor, input)
	if err != nil {
		respondOrderError(c, err, "item create failed")
		return
	}
	response.Success(c, item)
}

// GetItem 目录条目详情
func (h *Handler) GetItem(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	item, err := h.CatalogService.GetItem(actor, itemID)
	if err != nil {
		respondOrderError(c, err, "item fetch failed")
		return
	}
	response.Success(c, item)
}

// ListItems 目录条目列表
func (h *Handler) ListItems(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.ItemListFilter{
		Page:     page,
		PageSize: pageSize,
		TenantID: actor.TenantID,
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("category_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil && parsed > 0 {
			categoryID := uint(parsed)
			filter.CategoryID = &categoryID
		}
	}

	items, total, err := h.CatalogService.ListItems(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "item list failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// StockedSites 目录条目的有货站点
func (h *Handler) StockedSites(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	siteIDs, err := h.CatalogService.StockedSites(c.Request.Context(), actor, itemID)
	if err != nil {
		respondOrderError(c, err, "stocked sites fetch failed")
		return
	}
	response.Success(c, gin.H{"site_ids": siteIDs})
}

// CreateCategoryRequest 创建分类入参
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateCategory 创建分类
func (h *Handler) CreateCategory(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	category, err := h.CatalogService.CreateCategory(actor, req.Name)
	if err != nil {
		respondOrderError(c, err, "category create failed")
		return
	}
	response.Success(c, category)
}

// ListMoveTransactions 订单项的跨租户移库事务
func (h *Handler) ListMoveTransactions(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	moves, err := h.MoveTransactionService.ListByItem(actor, itemID)
	if err != nil {
		respondOrderError(c, err, "move transactions fetch failed")
		return
	}
	response.Success(c, moves)
}

// GetContainer 发货容器详情
func (h *Handler) GetContainer(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	trackingID := strings.TrimSpace(c.Param("tracking_id"))
	if trackingID == "" {
		respondError(c, response.CodeBadRequest, "invalid tracking id", nil)
		return
	}
	container, err := h.ShippingService.GetContainer(actor.TenantID, trackingID)
	if err != nil {
		respondOrderError(c, err, "container fetch failed")
		return
	}
	transactions, err := h.ShippingService.ListTransactions(actor.TenantID, trackingID)
	if err != nil {
		respondOrderError(c, err, "container fetch failed")
		return
	}
	response.Success(c, gin.H{
		"container":    container,
		"transactions": transactions,
	})
}
