package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// ActorRepository 操作人数据访问接口
type ActorRepository interface {
	Create(actor *models.Actor) error
	GetByID(id uint) (*models.Actor, error)
	GetByEmail(email string) (*models.Actor, error)
	ListByTenant(tenantID uint) ([]models.Actor, error)
}

// GormActorRepository GORM 实现
type GormActorRepository struct {
	db *gorm.DB
}

// NewActorRepository 创建操作人仓库
func NewActorRepository(db *gorm.DB) *GormActorRepository {
	return &GormActorRepository{db: db}
}

// Create 创建操作人
func (r *GormActorRepository) Create(actor *models.Actor) error {
	return r.db.Create(actor).Error
}

// GetByID 按 ID 获取操作人
func (r *GormActorRepository) GetByID(id uint) (*models.Actor, error) {
	var actor models.Actor
	err := r.db.First(&actor, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

// GetByEmail 按邮箱获取操作人
func (r *GormActorRepository) GetByEmail(email string) (*models.Actor, error) {
	var actor models.Actor
	err := r.db.Where("email = ?", email).First(&actor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

// ListByTenant 获取租户内全部操作人
func (r *GormActorRepository) ListByTenant(tenantID uint) ([]models.Actor, error) {
	var actors []models.Actor
	if err := r.db.Where("tenant_id = ?", tenantID).Order("id asc").Find(&actors).Error; err != nil {
		return nil, err
	}
	return actors, nil
}
