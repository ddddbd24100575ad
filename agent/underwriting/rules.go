package underwriting

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

const (
	MinCreditScore     = 700
	MaxLimitMultiplier = 2
	EMIMonths          = 12
	MaxEMISalaryRatio  = 0.5
)

// Input holds the four signals the engine decides on. Absent values are zero.
type Input struct {
	CreditScore      int64
	LoanAmount       int64
	PreapprovedLimit int64
	Salary           int64
}

// Details is the numeric breakdown later explanations are allowed to read.
type Details struct {
	CreditScore      int64    `json:"credit_score"`
	LoanAmount       int64    `json:"loan_amount"`
	PreapprovedLimit int64    `json:"preapproved_limit"`
	Salary           int64    `json:"salary"`
	MaxAllowed       int64    `json:"max_allowed"`
	EMI              *float64 `json:"emi,omitempty"`
}

type Result struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	Details  Details  `json:"details"`
	// Rule names the rule that decided.
	Rule string `json:"rule,omitempty"`
}

func (r Result) Approved() bool {
	return r.Decision == DecisionApproved
}

// Rule is one predicate->outcome step of the rule chain.
type Rule struct {
	Name    string
	Applies func(in Input) bool
	Decide  func(in Input, details *Details) (Decision, string)
}

var rules = []Rule{
	{
		Name: "min_credit_score",
		Applies: func(in Input) bool {
			return in.CreditScore < MinCreditScore
		},
		Decide: func(in Input, _ *Details) (Decision, string) {
			return DecisionRejected, fmt.Sprintf(
				"Credit score %d is below the required minimum of %d.",
				in.CreditScore, MinCreditScore,
			)
		},
	},
	{
		Name: "within_preapproved",
		Applies: func(in Input) bool {
			return in.LoanAmount <= in.PreapprovedLimit
		},
		Decide: func(in Input, details *Details) (Decision, string) {
			details.EMI = emiOf(in.LoanAmount)
			return DecisionApproved, fmt.Sprintf(
				"Requested amount %s is within pre-approved limit of %s.",
				rupees(in.LoanAmount), rupees(in.PreapprovedLimit),
			)
		},
	},
	{
		Name: "affordability",
		Applies: func(in Input) bool {
			return in.LoanAmount <= maxAllowed(in.PreapprovedLimit)
		},
		Decide: func(in Input, details *Details) (Decision, string) {
			emi := emiOf(in.LoanAmount)
			details.EMI = emi
			if in.Salary > 0 && *emi <= MaxEMISalaryRatio*float64(in.Salary) {
				return DecisionApproved, fmt.Sprintf(
					"Estimated monthly EMI %s is <= 50%% of monthly salary %s; affordable.",
					rupeesf(*emi), rupees(in.Salary),
				)
			}
			return DecisionRejected, fmt.Sprintf(
				"Estimated monthly EMI %s exceeds 50%% of monthly salary %s; unaffordable.",
				rupeesf(*emi), rupees(in.Salary),
			)
		},
	},
	{
		Name: "above_max_allowed",
		Applies: func(Input) bool {
			return true
		},
		Decide: func(in Input, details *Details) (Decision, string) {
			details.EMI = emiOf(in.LoanAmount)
			return DecisionRejected, fmt.Sprintf(
				"Requested amount %s exceeds the allowable maximum (2x pre-approved limit %s).",
				rupees(in.LoanAmount), rupees(maxAllowed(in.PreapprovedLimit)),
			)
		},
	},
}

// Rules returns the rule chain in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Evaluate runs the rule chain; the first rule that applies decides.
// It is a pure function of its input.
func Evaluate(in Input) Result {
	if in.PreapprovedLimit < 0 {
		in.PreapprovedLimit = 0
	}

	details := Details{
		CreditScore:      in.CreditScore,
		LoanAmount:       in.LoanAmount,
		PreapprovedLimit: in.PreapprovedLimit,
		Salary:           in.Salary,
		MaxAllowed:       maxAllowed(in.PreapprovedLimit),
	}

	for _, rule := range rules {
		if !rule.Applies(in) {
			continue
		}
		decision, reason := rule.Decide(in, &details)
		return Result{Decision: decision, Reason: reason, Details: details, Rule: rule.Name}
	}

	// the last rule always applies
	panic("underwriting: rule chain exhausted")
}

func maxAllowed(limit int64) int64 {
	return MaxLimitMultiplier * limit
}

func emiOf(amount int64) *float64 {
	emi := float64(amount) / EMIMonths
	return &emi
}

func rupees(v int64) string {
	return "₹" + humanize.Comma(v)
}

func rupeesf(v float64) string {
	return rupees(int64(math.Round(v)))
}

// FormatRupees renders an amount the way decision reasons do.
func FormatRupees(v int64) string {
	return rupees(v)
}
