package orchestratornode

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
)

var (
	errNoDocumentGenerator  = errors.New("document generator is not configured")
	errPhoneApprovedByOther = errors.New("phone is bound to another approved guest")
)

// runApprovalEffects performs the side effects of an approval. None of them
// can change the reply: each yields an EffectResult that is logged, counted
// and, on failure, handed to the retrier.
func runApprovalEffects(ctx context.Context, d *dialogue, amount, tenure int64) {
	st := d.st
	customer := st.Customer

	doc := contractx.EffectResult{Kind: contractx.EffectGenerateDocument}
	if d.deps.Documents == nil {
		doc.Status, doc.Err = contractx.EffectSkipped, errNoDocumentGenerator
	} else {
		limit := customer.PreapprovedLimit
		ref, err := d.deps.Documents.Generate(ctx, contractx.DocumentRequest{
			Name:             customer.Name,
			Amount:           amount,
			TenureMonths:     tenure,
			Salary:           customer.Salary,
			PreapprovedLimit: &limit,
			CreditScore:      customer.CreditScore,
			GuestID:          st.GuestID,
		})
		if err != nil {
			doc.Status, doc.Err = contractx.EffectFailed, err
		} else {
			doc.Status = contractx.EffectOK
			st.LastFile = ref
			d.in.File = ref
		}
	}
	d.record(ctx, doc)

	mark := contractx.EffectResult{Kind: contractx.EffectMarkGuestApproved, Status: contractx.EffectSkipped}
	if st.IsGuest() {
		ok, err := d.deps.Identity.MarkApproved(ctx, st.GuestID, st.Phone)
		switch {
		case err != nil:
			mark.Status, mark.Err = contractx.EffectFailed, err
		case !ok:
			mark.Status, mark.Err = contractx.EffectFailed, errPhoneApprovedByOther
		default:
			mark.Status = contractx.EffectOK
		}
	}
	d.record(ctx, mark)

	register := contractx.EffectResult{Kind: contractx.EffectRegisterCustomer, Status: contractx.EffectSkipped}
	// a phone another guest holds approved must not be re-registered to this applicant
	if st.Phone != "" && !errors.Is(mark.Err, errPhoneApprovedByOther) {
		profile := customer.Clone()
		profile.AssociatedPhone = ""
		if err := d.deps.Identity.UpsertRegisteredCustomer(ctx, st.Phone, profile); err != nil {
			register.Status, register.Err = contractx.EffectFailed, err
		} else {
			register.Status = contractx.EffectOK
		}
	}
	d.record(ctx, register)
}

func (d *dialogue) record(ctx context.Context, res contractx.EffectResult) {
	d.in.Effects = append(d.in.Effects, res)
	d.deps.Metrics.IncSideEffect(string(res.Kind), string(res.Status))

	if !res.Failed() {
		log.Debug().
			Str("session_id", d.in.SessionID).
			Str("kind", string(res.Kind)).
			Str("status", string(res.Status)).
			Msg("approval side effect")
		return
	}

	log.Warn().Err(res.Err).
		Str("session_id", d.in.SessionID).
		Str("kind", string(res.Kind)).
		Msg("approval side effect failed")

	if d.deps.Retrier == nil {
		return
	}
	job := contractx.EffectRetry{
		Kind:      res.Kind,
		SessionID: d.in.SessionID,
		GuestID:   d.st.GuestID,
		Phone:     d.st.Phone,
		Profile:   d.st.Customer.Clone(),
		Error:     res.Err.Error(),
		FailedAt:  d.in.Now,
	}
	if err := d.deps.Retrier.Retry(ctx, job); err != nil {
		log.Error().Err(err).
			Str("session_id", d.in.SessionID).
			Str("kind", string(res.Kind)).
			Msg("side effect retry hand-off failed")
	}
}
