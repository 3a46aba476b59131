package service

import "github.com/orderbridge/internal/constants"

// ActorContext 操作人上下文，所有服务调用显式传递，不使用全局状态
type ActorContext struct {
	ActorID     uint
	TenantID    uint
	DisplayName string
	Role        string
}

// SystemActor 构造后台任务使用的系统操作人
func SystemActor(tenantID uint) ActorContext {
	return ActorContext{
		ActorID:     0,
		TenantID:    tenantID,
		DisplayName: "system",
		Role:        constants.ActorRoleAdmin,
	}
}

// IsSystem 判断是否系统操作人
func (a ActorContext) IsSystem() bool {
	return a.ActorID == 0
}

// ForTenant 返回切换到指定租户的上下文副本，镜像写入对端租户时使用
func (a ActorContext) ForTenant(tenantID uint) ActorContext {
	out := a
	out.TenantID = tenantID
	return out
}
