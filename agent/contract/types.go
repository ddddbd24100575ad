package contract

import (
	"time"

	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

// Profile is the applicant data the flow works with: a loaded registered
// customer, or the scratch profile assembled during guest onboarding.
type Profile struct {
	Name             string `json:"name"`
	Salary           *int64 `json:"salary,omitempty"`
	CreditScore      *int64 `json:"credit_score,omitempty"`
	PreapprovedLimit int64  `json:"preapproved_limit"`
	AssociatedPhone  string `json:"associated_phone,omitempty"`
}

func (p *Profile) SalaryOrZero() int64 {
	if p == nil || p.Salary == nil {
		return 0
	}
	return *p.Salary
}

func (p *Profile) CreditScoreOrZero() int64 {
	if p == nil || p.CreditScore == nil {
		return 0
	}
	return *p.CreditScore
}

// Clone returns a deep copy so stores never share pointers with sessions.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Salary != nil {
		v := *p.Salary
		out.Salary = &v
	}
	if p.CreditScore != nil {
		v := *p.CreditScore
		out.CreditScore = &v
	}
	return &out
}

type DocumentRequest struct {
	Name             string `json:"name"`
	Amount           int64  `json:"amount"`
	TenureMonths     int64  `json:"tenure_months"`
	Salary           *int64 `json:"salary,omitempty"`
	PreapprovedLimit *int64 `json:"preapproved_limit,omitempty"`
	CreditScore      *int64 `json:"credit_score,omitempty"`
	GuestID          string `json:"guest_id,omitempty"`
}

type ReplyContext struct {
	LastReason  string                `json:"last_reason,omitempty"`
	LastDetails *underwriting.Details `json:"last_details,omitempty"`
}

type EffectKind string

const (
	EffectGenerateDocument  EffectKind = "generate_document"
	EffectMarkGuestApproved EffectKind = "mark_guest_approved"
	EffectRegisterCustomer  EffectKind = "register_customer"
)

type EffectStatus string

const (
	EffectOK      EffectStatus = "ok"
	EffectFailed  EffectStatus = "failed"
	EffectSkipped EffectStatus = "skipped"
)

// EffectResult is the outcome of one approval side effect.
type EffectResult struct {
	Kind   EffectKind
	Status EffectStatus
	Err    error
}

func (r EffectResult) Failed() bool {
	return r.Status == EffectFailed
}

// EffectRetry is the payload published for a failed side effect.
type EffectRetry struct {
	Kind      EffectKind `json:"kind"`
	SessionID string     `json:"session_id"`
	GuestID   string     `json:"guest_id,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Profile   *Profile   `json:"profile,omitempty"`
	Error     string     `json:"error"`
	FailedAt  time.Time  `json:"failed_at"`
}

const (
	// GuestIDPrefix marks an utterance as a guest reference.
	GuestIDPrefix = "guest-"
	// GuestCommand starts guest onboarding.
	GuestCommand = "guest"
)
