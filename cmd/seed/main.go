package main

import (
	"fmt"

	"github.com/orderbridge/internal/authz"
	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化授权服务与预置角色
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	// 租户
	tenants := []models.Tenant{
		{Name: "Acme Logistics", Slug: "acme"},
		{Name: "Globex Procurement", Slug: "globex"},
	}
	tenantIDs := map[string]uint{}
	for _, tenant := range tenants {
		var existing models.Tenant
		if err := models.DB.Where("slug = ?", tenant.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&tenant).Error; err != nil {
				stdLog.Printf("Failed to create tenant %s: %v", tenant.Slug, err)
				continue
			}
			stdLog.Printf("Created tenant: %s", tenant.Slug)
			tenantIDs[tenant.Slug] = tenant.ID
		} else {
			stdLog.Printf("Tenant already exists: %s", existing.Slug)
			tenantIDs[existing.Slug] = existing.ID
		}
	}

	// 操作人（每租户一套 admin / picker / viewer）
	for slug, tenantID := range tenantIDs {
		for _, role := range []string{constants.ActorRoleAdmin, constants.ActorRolePicker, constants.ActorRoleViewer} {
			email := fmt.Sprintf("%s-%s@example.com", slug, role)
			var existing models.Actor
			if err := models.DB.Where("email = ?", email).First(&existing).Error; err == nil {
				stdLog.Printf("Actor already exists: %s", email)
				continue
			}
			hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
			if err != nil {
				stdLog.Printf("Failed to hash password for %s: %v", email, err)
				continue
			}
			actor := models.Actor{
				TenantID:     tenantID,
				Email:        email,
				DisplayName:  fmt.Sprintf("%s %s", slug, role),
				PasswordHash: string(hash),
				Role:         role,
			}
			if err := models.DB.Create(&actor).Error; err != nil {
				stdLog.Printf("Failed to create actor %s: %v", email, err)
				continue
			}
			if err := authzService.AssignActorRole(actor.ID, role); err != nil {
				stdLog.Printf("Failed to assign role for %s: %v", email, err)
			}
			stdLog.Printf("Created actor: %s", email)
		}
	}

	// 站点与目录数据只给履约方租户建
	acmeID := tenantIDs["acme"]
	if acmeID == 0 {
		stdLog.Fatalf("acme tenant missing, cannot seed catalog")
	}

	sites := []models.Site{
		{TenantID: acmeID, Name: "Central Warehouse"},
		{TenantID: acmeID, Name: "North Depot"},
	}
	siteIDs := make([]uint, 0, len(sites))
	for _, site := range sites {
		var existing models.Site
		if err := models.DB.Where("tenant_id = ? AND name = ?", site.TenantID, site.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&site).Error; err != nil {
				stdLog.Printf("Failed to create site %s: %v", site.Name, err)
				continue
			}
			stdLog.Printf("Created site: %s", site.Name)
			siteIDs = append(siteIDs, site.ID)
		} else {
			siteIDs = append(siteIDs, existing.ID)
		}
	}

	var category models.Category
	if err := models.DB.Where("tenant_id = ? AND name = ?", acmeID, "General Supplies").First(&category).Error; err != nil {
		category = models.Category{TenantID: acmeID, Name: "General Supplies"}
		if err := models.DB.Create(&category).Error; err != nil {
			stdLog.Printf("Failed to create category: %v", err)
		} else {
			stdLog.Printf("Created category: %s", category.Name)
		}
	}

	items := []models.Item{
		{
			TenantID:    acmeID,
			SKU:         "CHAIR-001",
			Title:       "Office Chair",
			Description: "Ergonomic office chair",
			UnitCost:    models.NewMoneyFromDecimal(decimal.NewFromFloat(129.90)),
			CategoryID:  &category.ID,
		},
		{
			TenantID:    acmeID,
			SKU:         "DESK-001",
			Title:       "Standing Desk",
			Description: "Height adjustable desk",
			UnitCost:    models.NewMoneyFromDecimal(decimal.NewFromFloat(349.00)),
			CategoryID:  &category.ID,
		},
		{
			TenantID: acmeID,
			SKU:      "CABLE-001",
			Title:    "Network Cable 5m",
			UnitCost: models.NewMoneyFromDecimal(decimal.NewFromFloat(4.50)),
		},
	}
	for _, item := range items {
		var existing models.Item
		if err := models.DB.Where("tenant_id = ? AND sku = ?", item.TenantID, item.SKU).First(&existing).Error; err == nil {
			stdLog.Printf("Item already exists: %s", item.SKU)
			continue
		}
		if err := models.DB.Create(&item).Error; err != nil {
			stdLog.Printf("Failed to create item %s: %v", item.SKU, err)
			continue
		}
		stdLog.Printf("Created item: %s", item.SKU)

		// 给每个站点铺初始库存
		for _, siteID := range siteIDs {
			stock := models.SiteStock{
				TenantID: acmeID,
				SiteID:   siteID,
				ItemID:   item.ID,
				OnHand:   50,
			}
			if err := models.DB.Create(&stock).Error; err != nil {
				stdLog.Printf("Failed to seed stock for %s at site %d: %v", item.SKU, siteID, err)
			}
		}
	}

	stdLog.Printf("Seed finished")
}
