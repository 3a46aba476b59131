package service

import (
	"context"
	"fmt"

	"github.com/orderbridge/internal/cache"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"
)

// CatalogService 目录条目与分类
type CatalogService struct {
	catalogRepo  repository.ItemRepository
	categoryRepo repository.CategoryRepository
	siteRepo     repository.SiteRepository
	cache        *cache.Cache
}

// NewCatalogService 创建目录服务
func NewCatalogService(
	catalogRepo repository.ItemRepository,
	categoryRepo repository.CategoryRepository,
	siteRepo repository.SiteRepository,
	cacheClient *cache.Cache,
) *CatalogService {
	return &CatalogService{
		catalogRepo:  catalogRepo,
		categoryRepo: categoryRepo,
		siteRepo:     siteRepo,
		cache:        cacheClient,
	}
}

// CreateItemInput 创建目录条目入参
type CreateItemInput struct {
	SKU          string   `json:"sku" binding:"required"`
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"image_url"`
	UnitCost     float64  `json:"unit_cost"`
	CostOverride *float64 `json:"cost_override"`
	CategoryID   *uint    `json:"category_id"`
}

// CreateItem 创建目录条目
func (s *CatalogService) CreateItem(actor ActorContext, input CreateItemInput) (*models.Item, error) {
	if input.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(actor.TenantID, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, fmt.Errorf("%w: category %d", ErrCatalogNotFound, *input.CategoryID)
		}
	}
	item := &models.Item{
		TenantID:    actor.TenantID,
		SKU:         input.SKU,
		Title:       input.Title,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		UnitCost:    models.NewMoneyFromFloat(input.UnitCost),
		CategoryID:  input.CategoryID,
	}
	if input.CostOverride != nil {
		override := models.NewMoneyFromFloat(*input.CostOverride)
		item.CostOverride = &override
	}
	if err := s.catalogRepo.Create(item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem 获取目录条目
func (s *CatalogService) GetItem(actor ActorContext, id uint) (*models.Item, error) {
	item, err := s.catalogRepo.GetByID(actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrCatalogNotFound, id)
	}
	return item, nil
}

// ListItems 查询目录条目列表
func (s *CatalogService) ListItems(filter repository.ItemListFilter) ([]models.Item, int64, error) {
	return s.catalogRepo.List(filter)
}

// CreateCategory 创建分类
func (s *CatalogService) CreateCategory(actor ActorContext, name string) (*models.Category, error) {
	category := &models.Category{TenantID: actor.TenantID, Name: name}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, err
	}
	return category, nil
}

// StockedSites 获取某条目有现货的站点
//
// 展示用途，走缓存，允许短暂陈旧；拣货扣库存时不经过这里。
func (s *CatalogService) StockedSites(ctx context.Context, actor ActorContext, itemID uint) ([]uint, error) {
	if siteIDs, ok := s.cache.GetStockedSites(ctx, actor.TenantID, itemID); ok {
		return siteIDs, nil
	}
	siteIDs, err := s.siteRepo.ListStockedSiteIDs(actor.TenantID, itemID)
	if err != nil {
		return nil, err
	}
	s.cache.SetStockedSites(ctx, actor.TenantID, itemID, siteIDs)
	return siteIDs, nil
}
