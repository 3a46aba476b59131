package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestBuiltinViewerRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	if err := svc.AssignActorRole(1, "viewer"); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}

	allow, err := svc.EnforceActor(1, "/api/v1/orders/42", "GET")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if !allow {
		t.Fatalf("viewer should read orders")
	}

	allow, err = svc.EnforceActor(1, "/api/v1/orders/42/pick", "POST")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if allow {
		t.Fatalf("viewer must not pick")
	}
}

func TestBuiltinPickerInheritsViewer(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	if err := svc.AssignActorRole(2, "picker"); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}

	cases := []struct {
		obj   string
		act   string
		allow bool
	}{
		{obj: "/api/v1/orders", act: "GET", allow: true},
		{obj: "/api/v1/orders/:id/pick", act: "POST", allow: true},
		{obj: "/api/v1/orders/:id/ship", act: "POST", allow: true},
		{obj: "/api/v1/orders/:id/unpack", act: "POST", allow: true},
		{obj: "/api/v1/orders/:id", act: "DELETE", allow: false},
		{obj: "/api/v1/actors", act: "POST", allow: false},
	}
	for _, item := range cases {
		allow, err := svc.EnforceActor(2, item.obj, item.act)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", item.act, item.obj, err)
		}
		if allow != item.allow {
			t.Fatalf("enforce %s %s = %v, want %v", item.act, item.obj, allow, item.allow)
		}
	}
}

func TestBuiltinAdminRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	if err := svc.AssignActorRole(3, "admin"); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}

	for _, probe := range [][2]string{
		{"/api/v1/orders/42", "DELETE"},
		{"/api/v1/actors", "POST"},
		{"/api/v1/categories", "POST"},
	} {
		allow, err := svc.EnforceActor(3, probe[0], probe[1])
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", probe[1], probe[0], err)
		}
		if !allow {
			t.Fatalf("admin should be allowed %s %s", probe[1], probe[0])
		}
	}
}

func TestBootstrapBuiltinRolesIdempotent(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
}

func TestAssignActorRoleReplaces(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}

	if err := svc.AssignActorRole(5, "viewer"); err != nil {
		t.Fatalf("assign viewer failed: %v", err)
	}
	if err := svc.AssignActorRole(5, "picker"); err != nil {
		t.Fatalf("assign picker failed: %v", err)
	}

	roles, err := svc.GetActorRoles(5)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:picker" {
		t.Fatalf("roles want [role:picker], got %v", roles)
	}

	allow, err := svc.EnforceActor(5, "/api/v1/orders/:id/pick", "POST")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if !allow {
		t.Fatalf("replacement role not effective")
	}
}

func TestNormalizeRole(t *testing.T) {
	got, err := NormalizeRole("  site ops ")
	if err != nil {
		t.Fatalf("normalize role failed: %v", err)
	}
	if got != "role:site_ops" {
		t.Fatalf("normalize role got %q", got)
	}
	if _, err := NormalizeRole(""); err == nil {
		t.Fatalf("empty role should fail")
	}
	if _, err := NormalizeRole("__anchor__"); err == nil {
		t.Fatalf("reserved role should fail")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/orders/:id", want: "/orders/:id"},
		{in: "/orders/:id", want: "/orders/:id"},
		{in: "orders", want: "/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestNormalizeAction(t *testing.T) {
	if got := NormalizeAction(" get "); got != "GET" {
		t.Fatalf("normalize action got %q", got)
	}
}
