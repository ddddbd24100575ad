package identity

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func newPostgresStoreForTest(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("LOAN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOAN_TEST_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(PostgresConfig{DSN: dsn, MaxOpenConns: 16})
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func uniquePhone() string {
	return "test-" + uuid.NewString()
}

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(PostgresConfig{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestPostgresStoreGuestLifecycle(t *testing.T) {
	store := newPostgresStoreForTest(t)
	ctx := context.Background()
	phone := uniquePhone()

	a := mustCreateGuest(t, store, "A")
	b := mustCreateGuest(t, store, "B")

	if ok, err := store.AssociatePhone(ctx, a, phone); err != nil || !ok {
		t.Fatalf("AssociatePhone(a) = %v, %v", ok, err)
	}
	if ok, err := store.AssociatePhone(ctx, a, phone); err != nil || !ok {
		t.Fatalf("AssociatePhone(a) repeat = %v, %v", ok, err)
	}
	if ok, err := store.AssociatePhone(ctx, b, phone); err != nil || ok {
		t.Fatalf("AssociatePhone(b) = %v, %v, want false", ok, err)
	}

	if ok, err := store.MarkApproved(ctx, a, phone); err != nil || !ok {
		t.Fatalf("MarkApproved(a) = %v, %v", ok, err)
	}
	if ok, err := store.MarkApproved(ctx, b, phone); err != nil || ok {
		t.Fatalf("MarkApproved(b) = %v, %v, want false", ok, err)
	}

	found, err := store.FindGuestByPhone(ctx, phone)
	if err != nil || found.ID != a || !found.Approved {
		t.Fatalf("FindGuestByPhone() = %+v, %v", found, err)
	}

	if err := store.UpsertRegisteredCustomer(ctx, phone, found.Profile); err != nil {
		t.Fatalf("UpsertRegisteredCustomer() error = %v", err)
	}
	if _, err := store.LookupCustomerByPhone(ctx, phone); err != nil {
		t.Fatalf("LookupCustomerByPhone() error = %v", err)
	}
}

func TestPostgresStoreConcurrentApprovalsBindOnce(t *testing.T) {
	store := newPostgresStoreForTest(t)
	ctx := context.Background()
	phone := uniquePhone()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = mustCreateGuest(t, store, "racer")
	}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok, err := store.MarkApproved(ctx, id, phone)
			if err != nil {
				t.Errorf("MarkApproved() error = %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(id)
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("approved bindings = %d, want exactly 1", got)
	}
}
