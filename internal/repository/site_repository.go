package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// SiteRepository 站点与站点库存数据访问接口
type SiteRepository interface {
	Create(site *models.Site) error
	GetByID(tenantID, id uint) (*models.Site, error)
	ListByTenant(tenantID uint) ([]models.Site, error)
	ListStockedSiteIDs(tenantID, itemID uint) ([]uint, error)
	GetStock(tenantID, siteID, itemID uint) (*models.SiteStock, error)
	ConsumeStock(tenantID, siteID, itemID uint, quantity int) error
	AddStock(tenantID, siteID, itemID uint, quantity int) error
	WithTx(tx *gorm.DB) *GormSiteRepository
}

// GormSiteRepository GORM 实现
type GormSiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository 创建站点仓库
func NewSiteRepository(db *gorm.DB) *GormSiteRepository {
	return &GormSiteRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSiteRepository) WithTx(tx *gorm.DB) *GormSiteRepository {
	if tx == nil {
		return r
	}
	return &GormSiteRepository{db: tx}
}

// Create 创建站点
func (r *GormSiteRepository) Create(site *models.Site) error {
	return r.db.Create(site).Error
}

// GetByID 按租户与 ID 获取站点
func (r *GormSiteRepository) GetByID(tenantID, id uint) (*models.Site, error) {
	var site models.Site
	err := r.db.Where("tenant_id = ?", tenantID).First(&site, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

// ListByTenant 获取租户全部站点
func (r *GormSiteRepository) ListByTenant(tenantID uint) ([]models.Site, error) {
	var sites []models.Site
	if err := r.db.Where("tenant_id = ?", tenantID).Order("id asc").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// ListStockedSiteIDs 获取某条目有现货的站点
func (r *GormSiteRepository) ListStockedSiteIDs(tenantID, itemID uint) ([]uint, error) {
	var siteIDs []uint
	err := r.db.Model(&models.SiteStock{}).
		Where("tenant_id = ? AND item_id = ? AND on_hand > 0", tenantID, itemID).
		Pluck("site_id", &siteIDs).Error
	if err != nil {
		return nil, err
	}
	return siteIDs, nil
}

// GetStock 获取站点库存记录
func (r *GormSiteRepository) GetStock(tenantID, siteID, itemID uint) (*models.SiteStock, error) {
	var stock models.SiteStock
	err := r.db.
		Where("tenant_id = ? AND site_id = ? AND item_id = ?", tenantID, siteID, itemID).
		First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

// ConsumeStock 扣减站点库存；现货不足返回 ErrInsufficientStock
func (r *GormSiteRepository) ConsumeStock(tenantID, siteID, itemID uint, quantity int) error {
	if quantity <= 0 {
		return errors.New("invalid stock consume quantity")
	}
	result := r.db.Model(&models.SiteStock{}).
		Where("tenant_id = ? AND site_id = ? AND item_id = ? AND on_hand >= ?", tenantID, siteID, itemID, quantity).
		UpdateColumn("on_hand", gorm.Expr("on_hand - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// AddStock 归还或入库站点库存
func (r *GormSiteRepository) AddStock(tenantID, siteID, itemID uint, quantity int) error {
	if quantity <= 0 {
		return errors.New("invalid stock add quantity")
	}
	result := r.db.Model(&models.SiteStock{}).
		Where("tenant_id = ? AND site_id = ? AND item_id = ?", tenantID, siteID, itemID).
		UpdateColumn("on_hand", gorm.Expr("on_hand + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		stock := models.SiteStock{
			TenantID: tenantID,
			SiteID:   siteID,
			ItemID:   itemID,
			OnHand:   quantity,
		}
		return r.db.Create(&stock).Error
	}
	return nil
}
