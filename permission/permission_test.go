package permission

import (
	"errors"
	"reflect"
	"testing"
)

func TestMask64RootBit(t *testing.T) {
	var m Mask64
	m.Set(3)
	if !m.Has(3) || m.Has(4) {
		t.Fatalf("unexpected mask bits %b", m.Raw())
	}
	m.Clear(3)
	if m.Has(3) {
		t.Fatalf("expected bit cleared")
	}
	m.Set(rootBit)
	if !m.Has(10) || !m.Root() {
		t.Fatalf("root bit must grant every bit")
	}
	if m.Has(64) || m.Has(-1) {
		t.Fatalf("out of range bits must be denied")
	}
}

func TestRegistryRules(t *testing.T) {
	r := NewRegistry()
	bit, err := r.Register("a")
	if err != nil || bit != 0 {
		t.Fatalf("Register a: bit=%d err=%v", bit, err)
	}
	if _, err := r.Register("a"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := r.Register(""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	r.Freeze()
	if _, err := r.Register("b"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegistryLimitReservesRootBit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < rootBit; i++ {
		if _, err := r.Register(string(rune('A' + i))); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := r.Register("overflow"); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestStorefrontMatrix(t *testing.T) {
	rm := Storefront()

	cases := []struct {
		role string
		perm string
		want bool
	}{
		{"user", CartManage, true},
		{"user", OrdersPlace, true},
		{"user", ProductsManage, false},
		{"user", AdminUsers, false},
		{"seller", ProductsManage, true},
		{"seller", PayoutsView, true},
		{"seller", CartManage, false},
		{"seller", AdminOrders, false},
		{"admin", AdminUsers, true},
		{"admin", PayoutsView, true},
		{"admin", "anything:else", true},
		{"guest", CatalogBrowse, false},
		{"user", "unknown:perm", false},
	}
	for _, tc := range cases {
		if got := rm.Allowed(tc.role, tc.perm); got != tc.want {
			t.Errorf("Allowed(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}

	if err := rm.RegisterRole("late"); !errors.Is(err, ErrRoleManagerFrozen) {
		t.Fatalf("expected frozen manager, got %v", err)
	}
}

func TestPermissionsListing(t *testing.T) {
	rm := Storefront()
	got := rm.Permissions("seller")
	want := []string{CatalogBrowse, ProductsManage, OrdersFulfill, PayoutsView}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Permissions(seller) = %v, want %v", got, want)
	}
	if len(rm.Permissions("admin")) != len(storefrontPermissions) {
		t.Fatalf("admin should list every permission")
	}
	if rm.Permissions("nobody") != nil {
		t.Fatalf("unknown role should list nothing")
	}
}

func TestRegisterRoleUnknownPermission(t *testing.T) {
	rm := NewRoleManager(NewRegistry())
	if err := rm.RegisterRole("x", "missing"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}
