package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"qualityportal/pkg/auth"
	"qualityportal/pkg/domain"
	"qualityportal/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var jose = domain.User{
	ID:          "user-001",
	Name:        "José Antunes",
	Email:       "jose.antunes@asch-ohla.com",
	Role:        domain.RoleAdmin,
	Permissions: []string{"read", "write", "delete", "admin"},
}

func newTestManager(t *testing.T, profiles store.ProfileStore, revoker store.TokenRevoker) *Manager {
	t.Helper()
	ctx := context.Background()
	dir := auth.NewDirectory(store.NewMemoryStore())
	err := dir.Provision(ctx, []auth.Seed{
		{Username: "jose", Password: "admin123", AccessCode: "ASCH2024", User: jose},
		{Username: "calidad", Password: "calidad123", AccessCode: "ASCH2024"},
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	tokens, err := store.NewJWTSessionStore(testSecret, time.Hour, revoker, store.JWTOptions{})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	return NewManager(dir, tokens, profiles)
}

func TestLogin(t *testing.T) {
	m := newTestManager(t, store.NewMemoryProfileStore(), store.NewMemoryTokenRevoker())
	ctx := context.Background()

	s, err := m.Login(ctx, "jose", "admin123", "ASCH2024")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.User.Role != domain.RoleAdmin || s.User.ID != "user-001" || s.User.Name != "José Antunes" {
		t.Fatalf("user = %+v", s.User)
	}
	if !s.User.HasPermission(domain.PermissionDelete) {
		t.Fatal("admin should be able to delete")
	}

	tests := []struct {
		name                 string
		user, password, code string
		want                 error
	}{
		{"wrong password", "jose", "wrong", "ASCH2024", auth.ErrInvalidCredentials},
		{"wrong code", "jose", "admin123", "XXXX", auth.ErrInvalidCredentials},
		{"unknown user", "nadie", "admin123", "ASCH2024", auth.ErrInvalidCredentials},
		{"missing code", "jose", "admin123", " ", ErrMissingFields},
		{"missing user", "", "admin123", "ASCH2024", ErrMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Login(ctx, tt.user, tt.password, tt.code)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := m.Login(ctx, "jose", "wrong", "ASCH2024"); err == nil || err.Error() != "invalid credentials" {
		t.Fatalf("message = %v", err)
	}
}

func TestCurrentUserAndLogout(t *testing.T) {
	m := newTestManager(t, store.NewMemoryProfileStore(), store.NewMemoryTokenRevoker())
	ctx := context.Background()
	s, err := m.Login(ctx, "calidad", "calidad123", "ASCH2024")
	if err != nil {
		t.Fatal(err)
	}
	user, ok := m.CurrentUser(ctx, s.Token)
	if !ok || user.ID != "user-calidad" || user.Role != domain.RoleViewer {
		t.Fatalf("current = %+v ok=%v", user, ok)
	}
	if _, ok := m.CurrentUser(ctx, s.Token+"x"); ok {
		t.Fatal("tampered token accepted")
	}
	if err := m.Logout(ctx, s.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := m.CurrentUser(ctx, s.Token); ok {
		t.Fatal("token still valid after logout")
	}
	if err := m.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("logout garbage: %v", err)
	}
}

func TestSessionSurvivesRestartWithRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	profiles := store.NewRedisProfileStore(client, "test")
	revoker := store.NewRedisTokenRevoker(client, "test")
	ctx := context.Background()

	first := newTestManager(t, profiles, revoker)
	s, err := first.Login(ctx, "jose", "admin123", "ASCH2024")
	if err != nil {
		t.Fatal(err)
	}

	second := newTestManager(t, profiles, revoker)
	user, ok := second.CurrentUser(ctx, s.Token)
	if !ok || user.Email != "jose.antunes@asch-ohla.com" {
		t.Fatalf("restored user = %+v ok=%v", user, ok)
	}

	if err := second.Logout(ctx, s.Token); err != nil {
		t.Fatal(err)
	}
	if _, ok := first.CurrentUser(ctx, s.Token); ok {
		t.Fatal("revocation should reach every instance")
	}
}
