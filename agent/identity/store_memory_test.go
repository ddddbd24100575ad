package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanpawarit/loan-assistant/agent/contract"
)

func int64Ptr(v int64) *int64 { return &v }

func seededStore() *MemoryStore {
	return NewMemoryStore(WithSeed(map[string]*contract.Profile{
		"9999999999": {Name: "Ravi", Salary: int64Ptr(50000), CreditScore: int64Ptr(750), PreapprovedLimit: 200000},
	}))
}

func mustCreateGuest(t *testing.T, store Store, name string) string {
	t.Helper()
	id, err := store.CreateGuest(context.Background(), &contract.Profile{
		Name:             name,
		Salary:           int64Ptr(40000),
		CreditScore:      int64Ptr(720),
		PreapprovedLimit: 240000,
	})
	if err != nil {
		t.Fatalf("CreateGuest() error = %v", err)
	}
	return id
}

func TestMemoryStoreLookupCustomer(t *testing.T) {
	t.Parallel()

	store := seededStore()
	ctx := context.Background()

	got, err := store.LookupCustomerByPhone(ctx, " 9999999999 ")
	if err != nil {
		t.Fatalf("LookupCustomerByPhone() error = %v", err)
	}
	if got.Name != "Ravi" || got.PreapprovedLimit != 200000 {
		t.Fatalf("LookupCustomerByPhone() = %+v", got)
	}

	got.Name = "changed"
	again, _ := store.LookupCustomerByPhone(ctx, "9999999999")
	if again.Name != "Ravi" {
		t.Fatal("lookup returned a shared pointer")
	}

	if _, err := store.LookupCustomerByPhone(ctx, "1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookupCustomerByPhone(miss) error = %v, want ErrNotFound", err)
	}
	if _, err := store.LookupCustomerByPhone(ctx, "  "); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("LookupCustomerByPhone(blank) error = %v, want ErrInvalidPhone", err)
	}
}

func TestMemoryStoreCreateGuest(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	id := mustCreateGuest(t, store, "Meera")
	if !strings.HasPrefix(id, contract.GuestIDPrefix) {
		t.Fatalf("guest id %q lacks prefix", id)
	}

	guest, err := store.LookupGuest(context.Background(), id)
	if err != nil {
		t.Fatalf("LookupGuest() error = %v", err)
	}
	if guest.Approved || guest.AssociatedPhone != "" || guest.Profile.Name != "Meera" {
		t.Fatalf("new guest = %+v", guest)
	}

	other := mustCreateGuest(t, store, "Meera")
	if other == id {
		t.Fatal("guest ids collided")
	}
}

func TestMemoryStoreLookupGuestMalformedID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	mustCreateGuest(t, store, "Meera")
	for _, id := range []string{"", "guest", contract.GuestIDPrefix, "user_123"} {
		if _, err := store.LookupGuest(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LookupGuest(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestMemoryStoreAssociatePhone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seededStore()
	a := mustCreateGuest(t, store, "A")
	b := mustCreateGuest(t, store, "B")

	ok, err := store.AssociatePhone(ctx, "guest-missing", "5550001")
	if err != nil || ok {
		t.Fatalf("AssociatePhone(unknown guest) = %v, %v", ok, err)
	}

	ok, err = store.AssociatePhone(ctx, a, "5550001")
	if err != nil || !ok {
		t.Fatalf("AssociatePhone(a) = %v, %v", ok, err)
	}
	ok, err = store.AssociatePhone(ctx, a, "5550001")
	if err != nil || !ok {
		t.Fatalf("AssociatePhone(a) repeat = %v, %v, want idempotent true", ok, err)
	}

	ok, err = store.AssociatePhone(ctx, b, "5550001")
	if err != nil || ok {
		t.Fatalf("AssociatePhone(b, held phone) = %v, %v, want false", ok, err)
	}
	guestB, _ := store.LookupGuest(ctx, b)
	if guestB.AssociatedPhone != "" {
		t.Fatal("failed association mutated the guest")
	}

	ok, err = store.AssociatePhone(ctx, b, "9999999999")
	if err != nil || ok {
		t.Fatalf("AssociatePhone(b, registered phone) = %v, %v, want false", ok, err)
	}

	found, err := store.FindGuestByPhone(ctx, "5550001")
	if err != nil || found.ID != a {
		t.Fatalf("FindGuestByPhone() = %+v, %v", found, err)
	}
	if found.Profile.AssociatedPhone != "5550001" {
		t.Fatalf("profile associated phone = %q", found.Profile.AssociatedPhone)
	}
}

func TestMemoryStoreMarkApproved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	a := mustCreateGuest(t, store, "A")
	b := mustCreateGuest(t, store, "B")

	ok, err := store.MarkApproved(ctx, "guest-missing", "")
	if err != nil || ok {
		t.Fatalf("MarkApproved(unknown) = %v, %v", ok, err)
	}

	ok, err = store.MarkApproved(ctx, a, "5550002")
	if err != nil || !ok {
		t.Fatalf("MarkApproved(a) = %v, %v", ok, err)
	}
	guestA, _ := store.LookupGuest(ctx, a)
	if !guestA.Approved || guestA.AssociatedPhone != "5550002" {
		t.Fatalf("guest a = %+v", guestA)
	}

	ok, err = store.MarkApproved(ctx, b, "5550002")
	if err != nil || ok {
		t.Fatalf("MarkApproved(b, phone approved for a) = %v, %v, want false", ok, err)
	}
	guestB, _ := store.LookupGuest(ctx, b)
	if guestB.Approved {
		t.Fatal("rejected approval flagged guest b")
	}

	approved, err := IsPhoneApproved(ctx, store, "5550002", false)
	if err != nil || !approved {
		t.Fatalf("IsPhoneApproved() = %v, %v", approved, err)
	}
}

func TestMemoryStoreFindGuestPrefersApprovedThenLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	a := mustCreateGuest(t, store, "A")
	b := mustCreateGuest(t, store, "B")

	if ok, _ := store.AssociatePhone(ctx, a, "5550003"); !ok {
		t.Fatal("associate a failed")
	}
	// b takes the phone through approval, which overrides a's unapproved hold.
	if ok, _ := store.MarkApproved(ctx, b, "5550003"); !ok {
		t.Fatal("approve b failed")
	}

	found, err := store.FindGuestByPhone(ctx, "5550003")
	if err != nil || found.ID != b {
		t.Fatalf("FindGuestByPhone() = %+v, %v, want approved guest b", found, err)
	}

	if _, err := store.FindGuestByPhone(ctx, "5550999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindGuestByPhone(miss) error = %v", err)
	}
}

func TestMemoryStoreConcurrentApprovalsBindOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	const n = 32
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
			ok, err := store.MarkApproved(ctx, id, "5550004")
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

func TestMemoryStoreConcurrentAssociationsBindOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	const n = 32
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < n; i++ {
		id := mustCreateGuest(t, store, "racer")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.AssociatePhone(ctx, id, "5550005"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("associations = %d, want exactly 1", got)
	}
}

func TestUpsertRegisteredCustomerMakesPhoneApproved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	approved, err := IsPhoneApproved(ctx, store, "5550006", true)
	if err != nil || approved {
		t.Fatalf("IsPhoneApproved(before) = %v, %v", approved, err)
	}

	if err := store.UpsertRegisteredCustomer(ctx, "5550006", &contract.Profile{Name: "New"}); err != nil {
		t.Fatalf("UpsertRegisteredCustomer() error = %v", err)
	}
	if err := store.UpsertRegisteredCustomer(ctx, "5550006", &contract.Profile{Name: "Newer"}); err != nil {
		t.Fatalf("UpsertRegisteredCustomer() second error = %v", err)
	}

	got, err := store.LookupCustomerByPhone(ctx, "5550006")
	if err != nil || got.Name != "Newer" {
		t.Fatalf("LookupCustomerByPhone() = %+v, %v", got, err)
	}

	approved, err = IsPhoneApproved(ctx, store, "5550006", true)
	if err != nil || !approved {
		t.Fatalf("IsPhoneApproved(registered) = %v, %v", approved, err)
	}
	approved, err = IsPhoneApproved(ctx, store, "5550006", false)
	if err != nil || approved {
		t.Fatalf("IsPhoneApproved(guests only) = %v, %v", approved, err)
	}
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	raw := []byte(`
customers:
  - phone: "9999999999"
    name: Ravi
    salary: 50000
    credit_score: 750
    preapproved_limit: 200000
  - phone: "8888888888"
    name: Anita
    preapproved_limit: 0
`)
	got, err := ParseSeed(raw)
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ParseSeed() len = %d", len(got))
	}
	ravi := got["9999999999"]
	if ravi.SalaryOrZero() != 50000 || ravi.CreditScoreOrZero() != 750 || ravi.PreapprovedLimit != 200000 {
		t.Fatalf("ravi = %+v", ravi)
	}
	if got["8888888888"].Salary != nil {
		t.Fatal("absent salary should stay nil")
	}

	if _, err := ParseSeed([]byte("customers:\n  - phone: \"\"\n")); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("ParseSeed(blank phone) error = %v", err)
	}
	if _, err := ParseSeed([]byte("customers:\n  - phone: \"1\"\n    preapproved_limit: -5\n")); err == nil {
		t.Fatal("expected error for negative limit")
	}
}
