package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tanpawarit/loan-assistant/agent/contract"
)

var (
	ErrNotFound     = errors.New("identity not found")
	ErrInvalidPhone = errors.New("phone is empty")
)

// Guest is an applicant who onboarded without a registered phone.
type Guest struct {
	ID              string            `json:"id"`
	Profile         *contract.Profile `json:"profile"`
	CreatedAt       time.Time         `json:"created_at"`
	Approved        bool              `json:"approved"`
	AssociatedPhone string            `json:"associated_phone,omitempty"`
	AssociatedAt    time.Time         `json:"associated_at,omitempty"`
}

func (g *Guest) clone() *Guest {
	if g == nil {
		return nil
	}
	out := *g
	out.Profile = g.Profile.Clone()
	return &out
}

// Store resolves registered customers and guests by phone and guest id.
//
// AssociatePhone and MarkApproved must run their check and write atomically:
// a phone ends up bound to at most one approved identity no matter how many
// turns race for it.
type Store interface {
	LookupCustomerByPhone(ctx context.Context, phone string) (*contract.Profile, error)
	LookupGuest(ctx context.Context, guestID string) (*Guest, error)
	// FindGuestByPhone returns the approved holder of phone if any, otherwise
	// the guest that associated it most recently.
	FindGuestByPhone(ctx context.Context, phone string) (*Guest, error)
	CreateGuest(ctx context.Context, profile *contract.Profile) (string, error)
	// AssociatePhone binds phone to guestID. It reports false without mutating
	// anything when the guest is unknown, another guest holds the phone, or the
	// phone belongs to an approved identity.
	AssociatePhone(ctx context.Context, guestID, phone string) (bool, error)
	// MarkApproved flags the guest approved and, when phone is set, binds it.
	// It reports false when the guest is unknown or another approved guest
	// holds the phone.
	MarkApproved(ctx context.Context, guestID, phone string) (bool, error)
	UpsertRegisteredCustomer(ctx context.Context, phone string, profile *contract.Profile) error
}

// IsPhoneApproved reports whether phone is already bound to an approved
// identity. With includeRegistered, registered customers count as approved.
func IsPhoneApproved(ctx context.Context, store Store, phone string, includeRegistered bool) (bool, error) {
	guest, err := store.FindGuestByPhone(ctx, phone)
	switch {
	case err == nil:
		if guest.Approved {
			return true, nil
		}
	case !errors.Is(err, ErrNotFound):
		return false, err
	}

	if !includeRegistered {
		return false, nil
	}
	_, err = store.LookupCustomerByPhone(ctx, phone)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func newGuestID() string {
	return contract.GuestIDPrefix + uuid.NewString()
}

func normalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", ErrInvalidPhone
	}
	return trimmed, nil
}

func validGuestID(guestID string) bool {
	return strings.HasPrefix(guestID, contract.GuestIDPrefix) && len(guestID) > len(contract.GuestIDPrefix)
}
