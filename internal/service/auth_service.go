package service

import (
	"fmt"
	"time"

	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthClaims JWT 负载
type AuthClaims struct {
	ActorID  uint   `json:"actor_id"`
	TenantID uint   `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService 登录与令牌
type AuthService struct {
	cfg       *config.JWTConfig
	actorRepo repository.ActorRepository
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.JWTConfig, actorRepo repository.ActorRepository) *AuthService {
	return &AuthService{cfg: cfg, actorRepo: actorRepo}
}

// Login 校验口令并签发令牌
func (s *AuthService) Login(email, password string) (string, *models.Actor, error) {
	actor, err := s.actorRepo.GetByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if actor == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.GenerateToken(actor)
	if err != nil {
		return "", nil, err
	}
	return token, actor, nil
}

// CreateActor 创建操作人
func (s *AuthService) CreateActor(tenantID uint, email, displayName, password, role string) (*models.Actor, error) {
	existing, err := s.actorRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	actor := &models.Actor{
		TenantID:     tenantID,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.actorRepo.Create(actor); err != nil {
		return nil, err
	}
	return actor, nil
}

// GenerateToken 签发访问令牌
func (s *AuthService) GenerateToken(actor *models.Actor) (string, error) {
	expireHours := s.cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := AuthClaims{
		ActorID:  actor.ID,
		TenantID: actor.TenantID,
		Role:     actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}

// ParseToken 解析访问令牌
func (s *AuthService) ParseToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrForbidden
	}
	return claims, nil
}

// ActorContextFromClaims 由令牌负载构造操作人上下文
func (s *AuthService) ActorContextFromClaims(claims *AuthClaims) (ActorContext, error) {
	actor, err := s.actorRepo.GetByID(claims.ActorID)
	if err != nil {
		return ActorContext{}, err
	}
	if actor == nil {
		return ActorContext{}, ErrActorNotFound
	}
	return ActorContext{
		ActorID:     actor.ID,
		TenantID:    actor.TenantID,
		DisplayName: actor.DisplayName,
		Role:        actor.Role,
	}, nil
}
