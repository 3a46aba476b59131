package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	api "github.com/orderbridge/internal/http/handlers/api"
	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	if w2.Header().Get(requestIDHeader) == "" {
		t.Fatalf("generated request id should not be empty")
	}
}

func setupAuthMiddlewareTest(t *testing.T) (*service.AuthService, *models.Actor) {
	t.Helper()
	dsn := fmt.Sprintf("file:mw_auth_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Actor{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	cfg := &config.JWTConfig{SecretKey: "middleware-test-secret-key-123456", ExpireHours: 1}
	authService := service.NewAuthService(cfg, repository.NewActorRepository(db))
	actor, err := authService.CreateActor(1, "picker@example.com", "Picker", "pw", constants.ActorRolePicker)
	if err != nil {
		t.Fatalf("create actor failed: %v", err)
	}
	return authService, actor
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authService, actor := setupAuthMiddlewareTest(t)

	r := gin.New()
	r.Use(JWTAuthMiddleware(authService))
	r.GET("/whoami", func(c *gin.Context) {
		value, _ := c.Get(api.ActorContextKey)
		ctx := value.(service.ActorContext)
		c.JSON(http.StatusOK, gin.H{"actor_id": ctx.ActorID, "tenant_id": ctx.TenantID})
	})

	// 错误响应统一走业务包裹，HTTP 状态保持 200，业务码才是断言对象
	assertUnauthorized := func(w *httptest.ResponseRecorder, label string) {
		t.Helper()
		if w.Code != http.StatusOK {
			t.Fatalf("%s: envelope http status want 200 got %d", label, w.Code)
		}
		var body response.Response
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: unmarshal envelope failed: %v", label, err)
		}
		if body.StatusCode != response.CodeUnauthorized {
			t.Fatalf("%s: status_code want %d got %d", label, response.CodeUnauthorized, body.StatusCode)
		}
	}

	// 缺少凭据
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assertUnauthorized(w, "missing header")

	// 格式错误
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assertUnauthorized(w, "bad scheme")

	// 伪造令牌
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	assertUnauthorized(w, "forged token")

	// 合法令牌放行并注入操作人上下文
	token, _, err := authService.Login("picker@example.com", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token want 200 got %d, body=%s", w.Code, w.Body.String())
	}
	var resp map[string]uint
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["actor_id"] != actor.ID || resp["tenant_id"] != actor.TenantID {
		t.Fatalf("unexpected actor context in handler: %v", resp)
	}
}
