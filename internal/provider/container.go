package provider

import (
	"github.com/orderbridge/internal/authz"
	"github.com/orderbridge/internal/cache"
	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/queue"
	"github.com/orderbridge/internal/repository"
	"github.com/orderbridge/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Cache       *cache.Cache

	// Repositories
	TenantRepo           repository.TenantRepository
	ActorRepo            repository.ActorRepository
	OrderRequestRepo     repository.OrderRequestRepository
	OrderRequestItemRepo repository.OrderRequestItemRepository
	CatalogRepo          repository.ItemRepository
	CategoryRepo         repository.CategoryRepository
	SiteRepo             repository.SiteRepository
	ShippingRepo         repository.ShippingRepository
	MoveRepo             repository.MoveTransactionRepository

	// Services
	AuthzService           *authz.Service
	AuthService            *service.AuthService
	EmailService           *service.EmailService
	NotificationService    *service.NotificationService
	ShippingService        *service.ShippingService
	MirrorService          *service.MirrorService
	CatalogService         *service.CatalogService
	MoveTransactionService *service.MoveTransactionService
	OrderRequestService    *service.OrderRequestService
	PickService            *service.PickService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queue.NewClient(cfg.Queue),
		Cache:       cache.New(cfg.Redis),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.TenantRepo = repository.NewTenantRepository(db)
	c.ActorRepo = repository.NewActorRepository(db)
	c.OrderRequestRepo = repository.NewOrderRequestRepository(db)
	c.OrderRequestItemRepo = repository.NewOrderRequestItemRepository(db)
	c.CatalogRepo = repository.NewItemRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.SiteRepo = repository.NewSiteRepository(db)
	c.ShippingRepo = repository.NewShippingRepository(db)
	c.MoveRepo = repository.NewMoveTransactionRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(&c.Config.JWT, c.ActorRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.NotificationService = service.NewNotificationService(c.QueueClient)
	c.ShippingService = service.NewShippingService(c.ShippingRepo)
	c.MirrorService = service.NewMirrorService(
		models.DB,
		c.OrderRequestRepo,
		c.OrderRequestItemRepo,
		c.CatalogRepo,
		c.CategoryRepo,
		c.MoveRepo,
		c.TenantRepo,
	)
	c.CatalogService = service.NewCatalogService(c.CatalogRepo, c.CategoryRepo, c.SiteRepo, c.Cache)
	c.MoveTransactionService = service.NewMoveTransactionService(c.MoveRepo, c.OrderRequestItemRepo)
	c.OrderRequestService = service.NewOrderRequestService(
		models.DB,
		&c.Config.Order,
		c.OrderRequestRepo,
		c.OrderRequestItemRepo,
		c.CatalogRepo,
		c.ShippingService,
		c.MirrorService,
		c.QueueClient,
		c.NotificationService,
	)
	c.PickService = service.NewPickService(
		models.DB,
		&c.Config.Order,
		c.OrderRequestService,
		c.OrderRequestRepo,
		c.OrderRequestItemRepo,
		c.SiteRepo,
		c.ShippingService,
		c.MirrorService,
		c.NotificationService,
		c.Cache,
	)
}
