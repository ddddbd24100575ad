package underwriting

import (
	"strings"
	"testing"
)

func TestEvaluateRejectsLowCreditScoreRegardlessOfAmount(t *testing.T) {
	t.Parallel()

	for _, score := range []int64{0, 300, 650, 699} {
		for _, amount := range []int64{0, 1000, 200000, 10_000_000} {
			got := Evaluate(Input{CreditScore: score, LoanAmount: amount, PreapprovedLimit: 500000, Salary: 900000})
			if got.Decision != DecisionRejected {
				t.Fatalf("score=%d amount=%d: decision = %s, want REJECTED", score, amount, got.Decision)
			}
			if got.Details.EMI != nil {
				t.Fatalf("score=%d: emi must be absent for credit rejections, got %v", score, *got.Details.EMI)
			}
			if !strings.Contains(got.Reason, "700") {
				t.Fatalf("reason %q should cite minimum threshold", got.Reason)
			}
		}
	}
}

func TestEvaluateApprovesWithinPreapprovedLimit(t *testing.T) {
	t.Parallel()

	const limit = 200000
	for _, amount := range []int64{0, 1, 12, 150000, limit} {
		got := Evaluate(Input{CreditScore: 700, LoanAmount: amount, PreapprovedLimit: limit})
		if got.Decision != DecisionApproved {
			t.Fatalf("amount=%d: decision = %s, want APPROVED", amount, got.Decision)
		}
		if got.Details.EMI == nil || *got.Details.EMI != float64(amount)/12 {
			t.Fatalf("amount=%d: emi = %v, want %v", amount, got.Details.EMI, float64(amount)/12)
		}
	}
}

func TestEvaluateAffordabilityTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount int64
		salary int64
		want   Decision
	}{
		{name: "affordable", amount: 300000, salary: 60000, want: DecisionApproved},
		{name: "exactly half of salary", amount: 240000, salary: 40000, want: DecisionApproved},
		{name: "just above half of salary", amount: 300012, salary: 50000, want: DecisionRejected},
		{name: "unaffordable", amount: 400000, salary: 20000, want: DecisionRejected},
		{name: "zero salary", amount: 200001, salary: 0, want: DecisionRejected},
		{name: "upper bound is 2x limit", amount: 400000, salary: 100000, want: DecisionApproved},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Evaluate(Input{CreditScore: 750, LoanAmount: tt.amount, PreapprovedLimit: 200000, Salary: tt.salary})
			if got.Decision != tt.want {
				t.Fatalf("decision = %s, want %s (reason %q)", got.Decision, tt.want, got.Reason)
			}
			if got.Details.EMI == nil {
				t.Fatal("emi must be present in affordability tier")
			}
			if !strings.Contains(got.Reason, "50%") {
				t.Fatalf("reason %q should mention the 50%% threshold", got.Reason)
			}
		})
	}
}

func TestEvaluateRejectsAboveTwiceLimit(t *testing.T) {
	t.Parallel()

	got := Evaluate(Input{CreditScore: 750, LoanAmount: 500000, PreapprovedLimit: 200000, Salary: 50000})
	if got.Decision != DecisionRejected {
		t.Fatalf("decision = %s, want REJECTED", got.Decision)
	}
	if got.Details.MaxAllowed != 400000 {
		t.Fatalf("max_allowed = %d, want 400000", got.Details.MaxAllowed)
	}
	if got.Rule != "above_max_allowed" {
		t.Fatalf("rule = %q, want above_max_allowed", got.Rule)
	}
	if !strings.Contains(got.Reason, "₹400,000") {
		t.Fatalf("reason %q should cite the maximum allowed", got.Reason)
	}
}

func TestEvaluateZeroLimitOnlyApprovesZeroAmount(t *testing.T) {
	t.Parallel()

	if got := Evaluate(Input{CreditScore: 800, LoanAmount: 0}); got.Decision != DecisionApproved {
		t.Fatalf("zero amount: decision = %s, want APPROVED", got.Decision)
	}
	got := Evaluate(Input{CreditScore: 800, LoanAmount: 1, Salary: 1_000_000})
	if got.Decision != DecisionRejected {
		t.Fatalf("amount above zero limit: decision = %s, want REJECTED", got.Decision)
	}
	if got.Details.MaxAllowed != 0 {
		t.Fatalf("max_allowed = %d, want 0", got.Details.MaxAllowed)
	}
}

func TestEvaluateDetailsAlwaysCarryInputs(t *testing.T) {
	t.Parallel()

	in := Input{CreditScore: 720, LoanAmount: 250000, PreapprovedLimit: 150000, Salary: 60000}
	got := Evaluate(in)
	want := Details{
		CreditScore:      720,
		LoanAmount:       250000,
		PreapprovedLimit: 150000,
		Salary:           60000,
		MaxAllowed:       300000,
	}
	got.Details.EMI = nil
	if got.Details != want {
		t.Fatalf("details = %+v, want %+v", got.Details, want)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	in := Input{CreditScore: 710, LoanAmount: 350000, PreapprovedLimit: 200000, Salary: 70000}
	first := Evaluate(in)
	second := Evaluate(in)
	if first.Decision != second.Decision || first.Reason != second.Reason {
		t.Fatalf("evaluate is not deterministic: %+v vs %+v", first, second)
	}
	if *first.Details.EMI != *second.Details.EMI {
		t.Fatalf("emi differs: %v vs %v", *first.Details.EMI, *second.Details.EMI)
	}
}

func TestRulesOrder(t *testing.T) {
	t.Parallel()

	want := []string{"min_credit_score", "within_preapproved", "affordability", "above_max_allowed"}
	got := Rules()
	if len(got) != len(want) {
		t.Fatalf("rules len = %d, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Name != want[i] {
			t.Fatalf("rule[%d] = %s, want %s", i, r.Name, want[i])
		}
	}
}
