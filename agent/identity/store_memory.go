package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tanpawarit/loan-assistant/agent/contract"
)

// MemoryStore keeps customers and guests in process behind one lock so every
// phone check-then-write is atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*contract.Profile
	guests    map[string]*Guest
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

// WithSeed preloads registered customers keyed by phone.
func WithSeed(customers map[string]*contract.Profile) MemoryOption {
	return func(m *MemoryStore) {
		for phone, profile := range customers {
			if profile == nil {
				continue
			}
			m.customers[phone] = profile.Clone()
		}
	}
}

// WithClock overrides the clock used for guest timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		customers: make(map[string]*contract.Profile),
		guests:    make(map[string]*Guest),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *MemoryStore) LookupCustomerByPhone(_ context.Context, phone string) (*contract.Profile, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.customers[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return profile.Clone(), nil
}

func (m *MemoryStore) LookupGuest(_ context.Context, guestID string) (*Guest, error) {
	if !validGuestID(guestID) {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	guest, ok := m.guests[guestID]
	if !ok {
		return nil, ErrNotFound
	}
	return guest.clone(), nil
}

func (m *MemoryStore) FindGuestByPhone(_ context.Context, phone string) (*Guest, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	guest := m.findByPhoneLocked(phone)
	if guest == nil {
		return nil, ErrNotFound
	}
	return guest.clone(), nil
}

func (m *MemoryStore) CreateGuest(_ context.Context, profile *contract.Profile) (string, error) {
	if profile == nil {
		return "", errors.New("guest profile is required")
	}

	stored := profile.Clone()
	stored.AssociatedPhone = ""
	id := newGuestID()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.guests[id] = &Guest{
		ID:        id,
		Profile:   stored,
		CreatedAt: m.now().UTC(),
	}
	return id, nil
}

func (m *MemoryStore) AssociatePhone(_ context.Context, guestID, phone string) (bool, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	guest, ok := m.guests[guestID]
	if !ok {
		return false, nil
	}
	if guest.AssociatedPhone == phone {
		return true, nil
	}
	if _, registered := m.customers[phone]; registered {
		return false, nil
	}
	if holder := m.findByPhoneLocked(phone); holder != nil && holder.ID != guestID {
		return false, nil
	}

	m.bindLocked(guest, phone)
	return true, nil
}

func (m *MemoryStore) MarkApproved(_ context.Context, guestID, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	guest, ok := m.guests[guestID]
	if !ok {
		return false, nil
	}

	if phone != "" {
		for _, other := range m.guests {
			if other.ID != guestID && other.Approved && other.AssociatedPhone == phone {
				return false, nil
			}
		}
		if guest.AssociatedPhone != phone {
			m.bindLocked(guest, phone)
		}
	}
	guest.Approved = true
	return true, nil
}

func (m *MemoryStore) UpsertRegisteredCustomer(_ context.Context, phone string, profile *contract.Profile) error {
	phone, err := normalizePhone(phone)
	if err != nil {
		return err
	}
	if profile == nil {
		return errors.New("customer profile is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[phone] = profile.Clone()
	return nil
}

func (m *MemoryStore) findByPhoneLocked(phone string) *Guest {
	var latest *Guest
	for _, guest := range m.guests {
		if guest.AssociatedPhone != phone {
			continue
		}
		if guest.Approved {
			return guest
		}
		if latest == nil || guest.AssociatedAt.After(latest.AssociatedAt) {
			latest = guest
		}
	}
	return latest
}

func (m *MemoryStore) bindLocked(guest *Guest, phone string) {
	guest.AssociatedPhone = phone
	guest.AssociatedAt = m.now().UTC()
	if guest.Profile != nil {
		guest.Profile.AssociatedPhone = phone
	}
}
