package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"qualityportal/pkg/domain"
)

func TestRedisProfileStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisProfileStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	ctx := context.Background()
	user := domain.User{ID: "user-001", Name: "José Antunes", Role: domain.RoleAdmin, Permissions: []string{"read", "admin"}}

	if err := s.Put(ctx, "sid-1", user, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "sid-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != user.Name || !got.HasPermission(domain.PermissionDelete) {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if err := s.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "sid-1"); ok {
		t.Fatalf("expected profile removed")
	}
}

func TestRedisProfileStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisProfileStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	ctx := context.Background()
	if err := s.Put(ctx, "sid-2", domain.User{ID: "u"}, time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, err := s.Get(ctx, "sid-2"); ok || err != nil {
		t.Fatalf("expected expired profile, ok=%v err=%v", ok, err)
	}
}

func TestMemoryProfileStore(t *testing.T) {
	s := NewMemoryProfileStore()
	ctx := context.Background()
	if err := s.Put(ctx, "sid", domain.User{ID: "u1"}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if u, ok, _ := s.Get(ctx, "sid"); !ok || u.ID != "u1" {
		t.Fatalf("unexpected get: %+v %v", u, ok)
	}
	_ = s.Delete(ctx, "sid")
	if _, ok, _ := s.Get(ctx, "sid"); ok {
		t.Fatalf("expected deleted profile")
	}
}
