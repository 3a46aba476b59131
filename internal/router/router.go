package router

import (
	"github.com/orderbridge/internal/config"
	api "github.com/orderbridge/internal/http/handlers/api"
	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	handler := api.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", handler.Login)
		}

		// 需鉴权接口
		authed := apiV1.Group("")
		authed.Use(JWTAuthMiddleware(c.AuthService))
		authed.Use(ActorRBACMiddleware(c.AuthzService))
		{
			authed.POST("/actors", handler.CreateActor)

			authed.GET("/orders", handler.ListOrders)
			authed.POST("/orders", handler.CreateOrder)
			authed.GET("/orders/:id", handler.GetOrder)
			authed.DELETE("/orders/:id", handler.DeleteOrder)
			authed.POST("/orders/:id/items/:item_id/status", handler.UpdateItemStatus)
			authed.PUT("/orders/:id/items/:item_id", handler.UpdateItem)
			authed.POST("/orders/:id/return", handler.ReturnOrder)
			authed.POST("/orders/:id/unpack", handler.UnpackOrder)
			authed.POST("/orders/:id/pick", handler.PickOrder)
			authed.POST("/orders/:id/ship", handler.ShipOrder)
			authed.POST("/orders/:id/deliver", handler.DeliverOrder)
			authed.POST("/orders/:id/block", handler.BlockOrder)
			authed.POST("/orders/:id/unblock", handler.UnblockOrder)
			authed.POST("/orders/:id/close", handler.CloseOrder)

			authed.GET("/items", handler.ListItems)
			authed.POST("/items", handler.CreateItem)
			authed.GET("/items/:id", handler.GetItem)
			authed.GET("/items/:id/stocked-sites", handler.StockedSites)
			authed.POST("/categories", handler.CreateCategory)

			authed.GET("/order-items/:id/move-transactions", handler.ListMoveTransactions)
			authed.GET("/containers/:tracking_id", handler.GetContainer)
		}
	}

	return r
}
