package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"qualityportal/pkg/auth"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/config"
)

func testConfig(t *testing.T) config.FileConfig {
	t.Helper()
	return config.FileConfig{
		Port:                    "8080",
		BaseURL:                 "http://portal.test",
		StorageDir:              t.TempDir(),
		RedisPrefix:             "test",
		SessionSecret:           strings.Repeat("s", 32),
		SessionTTL:              "1h",
		LoginRateLimitPerMinute: 5,
		Accounts: []config.AccountConfig{
			{Username: "jose", Password: "admin123", AccessCode: "ASCH2024", UserID: "user-001", Name: "José Antunes", Role: "admin"},
			{Username: "lector", Password: "lector123", AccessCode: "ASCH2024"},
		},
	}
}

func newApp(t *testing.T, cfg config.FileConfig) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, Deps{}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewInMemory(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()

	if a.LoginLimiter != nil || a.Alerts != nil {
		t.Fatal("expected no login limiter or alerter without redis")
	}
	if a.Blobs == nil {
		t.Fatal("expected local blob handler")
	}
	if err := a.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	sess, err := a.Sessions.Login(ctx, "jose", "admin123", "ASCH2024")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.User.Role != domain.RoleAdmin || sess.User.ID != "user-001" {
		t.Fatalf("unexpected user: %+v", sess.User)
	}
	if _, err := a.Sessions.Login(ctx, "jose", "wrong", "ASCH2024"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	viewer, err := a.Sessions.Login(ctx, "lector", "lector123", "ASCH2024")
	if err != nil {
		t.Fatalf("viewer login: %v", err)
	}
	if viewer.User.Role != domain.RoleViewer || viewer.User.ID != "user-lector" {
		t.Fatalf("expected provisioned defaults, got %+v", viewer.User)
	}
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	a := newApp(t, cfg)

	if a.LoginLimiter == nil || a.Alerts == nil {
		t.Fatal("expected login limiter and alerter with redis")
	}
	sess, err := a.Sessions.Login(context.Background(), "jose", "admin123", "ASCH2024")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got, ok := a.Sessions.Current(context.Background(), sess.Token); !ok || got.User.ID != "user-001" {
		t.Fatalf("current session = %+v, %v", got, ok)
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	if _, err := New(context.Background(), cfg, Deps{}, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected redis connection error")
	}
}

func TestSeeds(t *testing.T) {
	seeds := Seeds([]config.AccountConfig{{
		Username:    "editor",
		Password:    "editor123",
		AccessCode:  "ASCH2024",
		UserID:      "user-002",
		Name:        "Oficina Técnica",
		Email:       "ot@example.com",
		Role:        "editor",
		Permissions: []string{"read", "write"},
	}})
	if len(seeds) != 1 {
		t.Fatalf("expected one seed, got %d", len(seeds))
	}
	s := seeds[0]
	if s.Username != "editor" || s.Password != "editor123" || s.AccessCode != "ASCH2024" {
		t.Fatalf("unexpected credentials: %+v", s)
	}
	if s.User.ID != "user-002" || s.User.Role != domain.RoleEditor || s.User.Email != "ot@example.com" {
		t.Fatalf("unexpected user: %+v", s.User)
	}
	if len(s.User.Permissions) != 2 {
		t.Fatalf("unexpected permissions: %v", s.User.Permissions)
	}
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	a := newApp(t, testConfig(t))
	a.Notices.For("abandoned")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	if n := a.Notices.Prune(); n != 0 {
		t.Fatalf("expected janitor to prune empty queues, %d left", n)
	}
}
