//go:build integration

package bootstrap

import (
	"context"
	"sync"
	"testing"

	"github.com/weavefeed/accounts/internal/repository"
	"github.com/weavefeed/accounts/internal/testutil"
)

func TestIntegrationBootstrap_Postgres(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewPostgresDB(t)
	b := newTestBootstrapper(t, db, testSeed, nil)

	first, err := b.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("first Bootstrap failed: %v", err)
	}
	if !first.UserCreated || !first.ProfileCreated {
		t.Fatalf("first result = %+v, want created", first)
	}

	second, err := b.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}
	if second.UserCreated || second.ProfileCreated || second.UserID != first.UserID {
		t.Fatalf("second result = %+v, want no changes", second)
	}

	repo := repository.New(db.SQL(), db.Dialect())
	admin, err := repo.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if !admin.IsVerified || !admin.IsActive {
		t.Errorf("admin = %+v, want verified and active", admin)
	}
}

func TestIntegrationBootstrap_Concurrent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewPostgresDB(t)

	const runs = 4
	var wg sync.WaitGroup
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestBootstrapper(t, db, testSeed, nil).Bootstrap(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Bootstrap failed: %v", err)
		}
	}

	repo := repository.New(db.SQL(), db.Dialect())
	if n, err := repo.CountUsers(ctx); err != nil || n != 1 {
		t.Errorf("users = %d, %v; want 1", n, err)
	}
	if n, err := repo.CountProfiles(ctx); err != nil || n != 1 {
		t.Errorf("profiles = %d, %v; want 1", n, err)
	}
}
