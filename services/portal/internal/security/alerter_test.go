package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewAuditAlerter(rdb, "test:alerts")
}

func TestObserveTriggersOnRepeatedLoginFailures(t *testing.T) {
	alerter := newAlerter(t)
	var last AlertResult
	for range 10 {
		var err error
		last, err = alerter.Observe(context.Background(), "portal.login", "fail", "10.0.0.7")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if !last.Triggered || last.Count != 10 || last.Threshold != 10 || last.Window != 5*time.Minute {
		t.Fatalf("unexpected result: %+v", last)
	}

	other, err := alerter.Observe(context.Background(), "portal.login", "fail", "10.0.0.8")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if other.Triggered || other.Count != 1 {
		t.Fatalf("counters should be per ip: %+v", other)
	}
}

func TestObserveIgnoresEventsWithoutRule(t *testing.T) {
	alerter := newAlerter(t)
	cases := []struct{ event, outcome string }{
		{"portal.login", "success"},
		{"portal.document.upload", "fail"},
	}
	for _, tc := range cases {
		result, err := alerter.Observe(context.Background(), tc.event, tc.outcome, "10.0.0.7")
		if err != nil {
			t.Fatalf("observe %s/%s: %v", tc.event, tc.outcome, err)
		}
		if result.Triggered || result.Count != 0 {
			t.Fatalf("unexpected result for %s/%s: %+v", tc.event, tc.outcome, result)
		}
	}
}

func TestNilAlerter(t *testing.T) {
	if NewAuditAlerter(nil, "") != nil {
		t.Fatal("expected nil alerter without redis")
	}
	var a *AuditAlerter
	if _, err := a.Observe(context.Background(), "portal.login", "fail", ""); err != nil {
		t.Fatalf("nil observe: %v", err)
	}
}

func TestSanitizeSegment(t *testing.T) {
	if got := sanitizeSegment(" ::1 "); got != "__1" {
		t.Fatalf("sanitizeSegment = %q", got)
	}
	if got := sanitizeSegment(""); got != "unknown" {
		t.Fatalf("sanitizeSegment empty = %q", got)
	}
}
