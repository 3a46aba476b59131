package api

import (
	"errors"
	"strings"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录入参
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并签发令牌
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	token, actor, err := h.AuthService.Login(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, response.CodeUnauthorized, "invalid email or password", nil)
			return
		}
		respondError(c, response.CodeInternal, "login failed", err)
		return
	}

	response.Success(c, gin.H{
		"token": token,
		"actor": actor,
	})
}

// CreateActorRequest 创建操作者入参
type CreateActorRequest struct {
	TenantID    uint   `json:"tenant_id"`
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role" binding:"required"`
}

// CreateActor 创建租户内操作者（仅管理员）
func (h *Handler) CreateActor(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if actor.Role != constants.ActorRoleAdmin {
		respondError(c, response.CodeForbidden, "forbidden", nil)
		return
	}

	var req CreateActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	tenantID := req.TenantID
	if tenantID == 0 {
		tenantID = actor.TenantID
	}
	if tenantID != actor.TenantID {
		respondError(c, response.CodeForbidden, "forbidden", nil)
		return
	}

	created, err := h.AuthService.CreateActor(tenantID, req.Email, req.DisplayName, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			respondError(c, response.CodeBadRequest, "email already registered", nil)
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, response.CodeBadRequest, "invalid email address", nil)
		default:
			respondError(c, response.CodeInternal, "actor create failed", err)
		}
		return
	}

	if err := h.AuthzService.AssignActorRole(created.ID, created.Role); err != nil {
		logger.Warnw("api_assign_actor_role_failed",
			"actor_id", created.ID,
			"role", created.Role,
			"error", err,
		)
	}

	response.Success(c, created)
}
