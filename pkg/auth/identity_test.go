package auth

import (
	"context"
	"errors"
	"testing"

	"qualityportal/pkg/domain"
	"qualityportal/pkg/store"
)

func TestDirectoryAuthenticate(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(store.NewMemoryStore())
	err := dir.Provision(ctx, []Seed{{
		Username:   "jose",
		Password:   "admin123",
		AccessCode: "ASCH2024",
		User:       domain.User{ID: "user-001", Name: "José Antunes", Email: "jose.antunes@asch-ohla.com", Role: domain.RoleAdmin},
	}})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	user, err := dir.Authenticate(ctx, "jose", "admin123", "ASCH2024")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != domain.RoleAdmin || user.ID != "user-001" || !user.HasPermission(domain.PermissionDelete) {
		t.Fatalf("unexpected user: %+v", user)
	}

	tests := []struct {
		name, user, pass, code string
	}{
		{"wrong password", "jose", "wrong", "ASCH2024"},
		{"wrong code", "jose", "admin123", "XXXX"},
		{"unknown user", "nadie", "admin123", "ASCH2024"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := dir.Authenticate(ctx, tc.user, tc.pass, tc.code); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestProvisionDefaults(t *testing.T) {
	ctx := context.Background()
	accounts := store.NewMemoryStore()
	dir := NewDirectory(accounts)
	if err := dir.Provision(ctx, []Seed{{Username: "calidad", Password: "calidad123", AccessCode: "ASCH2024"}}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	acc, ok, _ := accounts.GetAccountByUsername(ctx, "calidad")
	if !ok {
		t.Fatal("expected account")
	}
	if acc.PasswordHash == "calidad123" || acc.AccessCodeHash == "ASCH2024" {
		t.Fatalf("secrets must be stored hashed")
	}
	if acc.User.ID != "user-calidad" || acc.User.Role != domain.RoleViewer || acc.User.HasPermission(domain.PermissionWrite) {
		t.Fatalf("unexpected defaults: %+v", acc.User)
	}
	if err := dir.Provision(ctx, []Seed{{Password: "x", AccessCode: "y"}}); err == nil {
		t.Fatalf("expected missing username to fail")
	}
}
