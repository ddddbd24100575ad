package orchestratornode

import (
	"context"

	statex "github.com/tanpawarit/loan-assistant/agent/state"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

func handleLoanAmount(_ context.Context, d *dialogue) (string, error) {
	amount, err := parseAmount(d.text)
	if err != nil {
		return msgBadAmount, nil
	}

	if err := d.advance(statex.StepTenure); err != nil {
		return "", err
	}
	d.st.LoanAmount = &amount
	return msgAskTenure, nil
}

func handleTenure(ctx context.Context, d *dialogue) (string, error) {
	tenure, err := parseTenure(d.text)
	if err != nil {
		return msgBadTenure, nil
	}
	d.st.TenureMonths = &tenure

	customer := d.st.Customer
	if customer == nil || d.st.LoanAmount == nil {
		if err := d.advance(statex.StepPost); err != nil {
			return "", err
		}
		return msgDataMissing, nil
	}
	amount := *d.st.LoanAmount

	res := underwriting.Evaluate(underwriting.Input{
		CreditScore:      customer.CreditScoreOrZero(),
		LoanAmount:       amount,
		PreapprovedLimit: customer.PreapprovedLimit,
		Salary:           customer.SalaryOrZero(),
	})
	d.st.RecordOutcome(res)
	d.deps.Metrics.IncDecision(string(res.Decision), res.Rule)

	if err := d.advance(statex.StepPost); err != nil {
		return "", err
	}

	if !res.Approved() {
		return msgRejected(res), nil
	}

	runApprovalEffects(ctx, d, amount, tenure)
	return msgApproved(customer.Name, amount, tenure, res), nil
}
