package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanpawarit/loan-assistant/agent/contract"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

type Step string

const (
	StepStart            Step = "START"
	StepPhone            Step = "PHONE"
	StepAssocPhone       Step = "ASSOC_PHONE"
	StepGuestName        Step = "GUEST_NAME"
	StepGuestSalary      Step = "GUEST_SALARY"
	StepGuestCreditScore Step = "GUEST_CREDIT_SCORE"
	StepLoanAmount       Step = "LOAN_AMOUNT"
	StepTenure           Step = "TENURE"
	StepPost             Step = "POST"
)

// transitions is the only graph Advance accepts. POST is left only by Reset.
var transitions = map[Step][]Step{
	StepStart:            {StepPhone},
	StepPhone:            {StepGuestName, StepAssocPhone, StepLoanAmount},
	StepAssocPhone:       {StepLoanAmount, StepPhone},
	StepGuestName:        {StepGuestSalary},
	StepGuestSalary:      {StepGuestCreditScore},
	StepGuestCreditScore: {StepLoanAmount},
	StepLoanAmount:       {StepTenure},
	StepTenure:           {StepPost},
	StepPost:             nil,
}

func (s Step) Valid() bool {
	_, ok := transitions[s]
	return ok
}

var (
	ErrUnknownStep       = errors.New("unknown dialogue step")
	ErrInvalidTransition = errors.New("invalid step transition")
	ErrInvalidGuestID    = errors.New("guest id has no guest prefix")
	ErrNegativeLimit     = errors.New("pre-approved limit is negative")
)

// Session is the server-held state of one conversation.
// Fields are populated phase by phase:
// - identity: Phone, Customer, GuestID (PHONE .. GUEST_CREDIT_SCORE, ASSOC_PHONE)
// - application: LoanAmount (LOAN_AMOUNT), TenureMonths (TENURE)
// - outcome: Outcome, LastFile (TENURE -> POST)
type Session struct {
	SessionID string `json:"session_id"`
	Step      Step   `json:"step"`

	Phone    string            `json:"phone,omitempty"`
	Customer *contract.Profile `json:"customer,omitempty"`
	GuestID  string            `json:"guest_id,omitempty"`

	LoanAmount   *int64 `json:"loan_amount,omitempty"`
	TenureMonths *int64 `json:"tenure_months,omitempty"`

	Outcome  *underwriting.Result `json:"outcome,omitempty"`
	LastFile string               `json:"last_file,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		Step:      StepStart,
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Advance moves to the next step. Staying on the current step is always allowed.
func (s *Session) Advance(to Step) error {
	if s == nil {
		return errors.New("nil session")
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStep, to)
	}
	if s.Step == to {
		return nil
	}
	for _, next := range transitions[s.Step] {
		if next == to {
			s.Step = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Step, to)
}

// Reset drops everything the conversation collected and waits for a phone number.
func (s *Session) Reset(now time.Time) {
	*s = Session{
		SessionID: s.SessionID,
		Step:      StepPhone,
		UpdatedAt: now.UTC(),
	}
}

// EnsureCustomer returns the scratch profile, creating it when absent.
func (s *Session) EnsureCustomer() *contract.Profile {
	if s.Customer == nil {
		s.Customer = &contract.Profile{}
	}
	return s.Customer
}

func (s *Session) IsGuest() bool {
	return s != nil && s.GuestID != ""
}

func (s *Session) RecordOutcome(res underwriting.Result) {
	s.Outcome = &res
}

func (s *Session) LastReason() string {
	if s == nil || s.Outcome == nil {
		return ""
	}
	return s.Outcome.Reason
}

func (s *Session) LastDetails() *underwriting.Details {
	if s == nil || s.Outcome == nil {
		return nil
	}
	d := s.Outcome.Details
	return &d
}

func (s *Session) Validate() error {
	if !s.Step.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStep, s.Step)
	}
	if s.GuestID != "" && !strings.HasPrefix(s.GuestID, contract.GuestIDPrefix) {
		return fmt.Errorf("%w: %s", ErrInvalidGuestID, s.GuestID)
	}
	if s.Customer != nil && s.Customer.PreapprovedLimit < 0 {
		return ErrNegativeLimit
	}
	return nil
}
