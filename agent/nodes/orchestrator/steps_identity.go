package orchestratornode

import (
	"context"
	"errors"
	"strings"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	"github.com/tanpawarit/loan-assistant/agent/identity"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
)

func handlePhone(ctx context.Context, d *dialogue) (string, error) {
	entry := d.trimmed()
	if entry == "" {
		return msgCustomerMiss, nil
	}

	if strings.EqualFold(entry, contractx.GuestCommand) {
		if err := d.advance(statex.StepGuestName); err != nil {
			return "", err
		}
		return msgGuestName, nil
	}

	if strings.HasPrefix(entry, contractx.GuestIDPrefix) {
		return resumeGuest(ctx, d, entry)
	}

	phone := entry
	holder, err := d.deps.Identity.FindGuestByPhone(ctx, phone)
	switch {
	case err == nil:
		if holder.Approved {
			return msgPhoneUsed, nil
		}
	case errors.Is(err, identity.ErrNotFound):
		holder = nil
	default:
		return "", err
	}

	customer, err := d.deps.Identity.LookupCustomerByPhone(ctx, phone)
	switch {
	case err == nil:
		if err := d.advance(statex.StepLoanAmount); err != nil {
			return "", err
		}
		d.st.Phone = phone
		d.st.Customer = customer
		return msgAskLoanAmount(customer.Name), nil
	case !errors.Is(err, identity.ErrNotFound):
		return "", err
	}

	if holder != nil {
		if err := d.advance(statex.StepLoanAmount); err != nil {
			return "", err
		}
		d.st.Phone = phone
		d.st.Customer = holder.Profile
		d.st.GuestID = holder.ID
		return msgAskLoanAmount(holder.Profile.Name), nil
	}

	return msgCustomerMiss, nil
}

func resumeGuest(ctx context.Context, d *dialogue, guestID string) (string, error) {
	guest, err := d.deps.Identity.LookupGuest(ctx, guestID)
	if errors.Is(err, identity.ErrNotFound) {
		return msgGuestMiss, nil
	}
	if err != nil {
		return "", err
	}

	if err := d.advance(statex.StepAssocPhone); err != nil {
		return "", err
	}
	d.st.GuestID = guest.ID
	d.st.Customer = guest.Profile
	return msgAskAssocPhone, nil
}

func handleAssocPhone(ctx context.Context, d *dialogue) (string, error) {
	phone := d.trimmed()
	if phone == "" {
		return msgAskAssocPhone, nil
	}

	approved, err := identity.IsPhoneApproved(ctx, d.deps.Identity, phone, true)
	if err != nil {
		return "", err
	}
	if approved {
		return msgAssocUsed, nil
	}

	if d.st.GuestID == "" {
		if err := d.advance(statex.StepPhone); err != nil {
			return "", err
		}
		return msgGuestIDLost, nil
	}

	ok, err := d.deps.Identity.AssociatePhone(ctx, d.st.GuestID, phone)
	if err != nil {
		return "", err
	}
	if !ok {
		return msgAssocFailed, nil
	}

	if err := d.advance(statex.StepLoanAmount); err != nil {
		return "", err
	}
	d.st.Phone = phone
	customer := d.st.EnsureCustomer()
	customer.AssociatedPhone = phone
	return msgAskLoanAmount(customer.Name), nil
}

func handleGuestName(_ context.Context, d *dialogue) (string, error) {
	name := d.trimmed()
	if name == "" {
		return msgGuestName, nil
	}

	if err := d.advance(statex.StepGuestSalary); err != nil {
		return "", err
	}
	d.st.EnsureCustomer().Name = name
	return msgGuestSalary, nil
}

func handleGuestSalary(_ context.Context, d *dialogue) (string, error) {
	salary, err := parseAmount(d.text)
	if err != nil {
		return msgBadSalary, nil
	}

	if err := d.advance(statex.StepGuestCreditScore); err != nil {
		return "", err
	}
	d.st.EnsureCustomer().Salary = &salary
	return msgGuestScore, nil
}

// guestLimitMultiplier sizes the demo pre-approved limit from monthly salary.
const guestLimitMultiplier = 6

func handleGuestCreditScore(ctx context.Context, d *dialogue) (string, error) {
	score, err := parseNonNegative(d.text)
	if err != nil {
		return msgBadScore, nil
	}

	profile := d.st.EnsureCustomer().Clone()
	profile.CreditScore = &score
	profile.PreapprovedLimit = 0
	if salary := profile.SalaryOrZero(); salary > 0 {
		profile.PreapprovedLimit = guestLimitMultiplier * salary
	}

	guestID, err := d.deps.Identity.CreateGuest(ctx, profile)
	if err != nil {
		return "", err
	}

	if err := d.advance(statex.StepLoanAmount); err != nil {
		return "", err
	}
	d.st.Customer = profile
	d.st.GuestID = guestID
	return msgAskLoanAmount(profile.Name) + "\n\n" + msgGuestSaved(guestID, profile.PreapprovedLimit), nil
}
