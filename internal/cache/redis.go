package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/logger"

	"github.com/redis/go-redis/v9"
)

const stockedSitesTTL = 5 * time.Minute

// Cache 读路径缓存
//
// 只用于展示类查询加速，任何失败都静默降级到数据库，不参与正确性
// 决策。
type Cache struct {
	rdb     *redis.Client
	prefix  string
	enabled bool
}

// New 创建缓存客户端
func New(cfg config.RedisConfig) *Cache {
	if !cfg.Enabled {
		logger.Warnw("cache_disabled", "reason", "redis.enabled=false")
		return &Cache{enabled: false}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnw("cache_ping_failed", "error", err)
	}
	return &Cache{rdb: rdb, prefix: cfg.Prefix, enabled: true}
}

// Close 释放连接
func (c *Cache) Close() {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Close(); err != nil {
		logger.Warnw("cache_close_failed", "error", err)
	}
}

func (c *Cache) stockedSitesKey(tenantID, itemID uint) string {
	return fmt.Sprintf("%s:stocked_sites:%d:%d", c.prefix, tenantID, itemID)
}

// GetStockedSites 读取某条目有现货的站点缓存
func (c *Cache) GetStockedSites(ctx context.Context, tenantID, itemID uint) ([]uint, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.stockedSitesKey(tenantID, itemID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debugw("cache_get_failed", "key", c.stockedSitesKey(tenantID, itemID), "error", err)
		}
		return nil, false
	}
	var siteIDs []uint
	if err := json.Unmarshal(raw, &siteIDs); err != nil {
		return nil, false
	}
	return siteIDs, true
}

// SetStockedSites 写入站点现货缓存
func (c *Cache) SetStockedSites(ctx context.Context, tenantID, itemID uint, siteIDs []uint) {
	if c == nil || !c.enabled {
		return
	}
	raw, err := json.Marshal(siteIDs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.stockedSitesKey(tenantID, itemID), raw, stockedSitesTTL).Err(); err != nil {
		logger.Debugw("cache_set_failed", "key", c.stockedSitesKey(tenantID, itemID), "error", err)
	}
}

// InvalidateStockedSites 库存变动后失效缓存
func (c *Cache) InvalidateStockedSites(ctx context.Context, tenantID, itemID uint) {
	if c == nil || !c.enabled {
		return
	}
	if err := c.rdb.Del(ctx, c.stockedSitesKey(tenantID, itemID)).Err(); err != nil {
		logger.Debugw("cache_del_failed", "key", c.stockedSitesKey(tenantID, itemID), "error", err)
	}
}
