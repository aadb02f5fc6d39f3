//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/weavefeed/accounts/internal/testutil"
)

func TestIntegrationLoginThrottle_ExhaustsBurst(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewRedisClient(t)

	throttle := NewLoginThrottle(NewFromClient(client), 1, 3)

	for i := 0; i < 3; i++ {
		res, err := throttle.Allow(ctx, "admin")
		if err != nil {
			t.Fatalf("Allow #%d failed: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	res, err := throttle.Allow(ctx, "ADMIN")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth attempt should be throttled")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	if err := throttle.Reset(ctx, "admin"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	res, err = throttle.Allow(ctx, "admin")
	if err != nil || !res.Allowed {
		t.Fatalf("after Reset Allow = %+v, %v; want allowed", res, err)
	}
}
