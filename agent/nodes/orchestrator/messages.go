package orchestratornode

import (
	"fmt"
	"math"

	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

const (
	msgGreeting      = "Welcome! I'm your AI loan assistant. Please enter your phone number to get started, or type 'guest' to continue as a guest."
	msgClarify       = "Could you clarify which part you'd like explained?"
	msgTryAgain      = "Sorry, something went wrong on our side. Please try again."
	msgFollowUp      = "Is there anything else I can help you with? (type 'restart' to apply again)"
	msgPostBlank     = "Is there anything else I can help you with? Type 'restart' to start a new loan application."
	msgRestart       = "Sure, let's start again. Please enter your phone number or type 'guest' to continue as guest."
	msgCustomerMiss  = "Customer not found. Please re-enter a registered phone number or type 'guest' to continue as guest."
	msgGuestMiss     = "Guest id not found. Please re-enter a registered phone number or type 'guest' to create a new guest."
	msgAskAssocPhone = "Please enter your phone number to associate with this guest id."
	msgPhoneUsed     = "This phone number has already been used for an approved loan. Please contact support if this is your number."
	msgAssocUsed     = "This phone number has already been used for an approved loan. Please provide a different phone number."
	msgGuestIDLost   = "Guest id missing. Please enter your phone number or guest id."
	msgAssocFailed   = "Unable to associate phone with guest id (it may be used). Please enter a different phone."
	msgGuestName     = "Welcome, guest! Please tell me your full name."
	msgGuestSalary   = "Please enter your monthly salary in numbers (e.g. 40000)."
	msgGuestScore    = "Please enter your approximate credit score (e.g. 650)."
	msgBadSalary     = "Please enter your monthly salary as a number, e.g. 40000"
	msgBadScore      = "Please enter an approximate numeric credit score, e.g. 650"
	msgBadAmount     = "Please enter the loan amount as a number, e.g. 300000"
	msgAskTenure     = "Please enter desired loan tenure in months (e.g. 12, 24, 36)."
	msgBadTenure     = "Please enter loan tenure in months as a number, e.g. 24"
	msgDataMissing   = "Customer data missing. Cannot proceed."
	msgHelp          = "I can help with loan applications, explain decisions, or generate sanction letters. Type 'restart' to start a new loan application."
	msgEMIUnknown    = "EMI depends on principal, tenure and interest rate. Provide those and I can estimate."
)

func msgReason(reason string) string {
	return "Reason: " + reason
}

func msgAskLoanAmount(name string) string {
	if name != "" {
		return fmt.Sprintf("Hello %s, how much loan do you need? (enter amount in numbers, e.g. 300000)", name)
	}
	return "How much loan do you need? (enter amount in numbers, e.g. 300000)"
}

func msgGuestSaved(guestID string, limit int64) string {
	return fmt.Sprintf("Note: your details were saved as guest id %s. Your demo pre-approved limit is %s.",
		guestID, underwriting.FormatRupees(limit))
}

func msgApproved(name string, amount, tenure int64, res underwriting.Result) string {
	out := fmt.Sprintf("Thank you %s. You requested %s for %d months.\n\nDecision: %s. %s",
		name, underwriting.FormatRupees(amount), tenure, res.Decision, res.Reason)
	if res.Details.EMI != nil {
		out += fmt.Sprintf("\nEstimated EMI: %s per month.", underwriting.FormatRupees(roundEMI(*res.Details.EMI)))
	}
	return out + "\n\nCongratulations! Your loan is approved and a sanction letter has been generated.\n\n" + msgFollowUp
}

func msgRejected(res underwriting.Result) string {
	return fmt.Sprintf("Sorry, based on underwriting rules your loan cannot be approved at this time.\n\nDecision: %s. %s\n\n%s",
		res.Decision, res.Reason, msgFollowUp)
}

func msgEMI(emi float64) string {
	return fmt.Sprintf("Your estimated EMI was %s per month. I can show a payment schedule if you want.",
		underwriting.FormatRupees(roundEMI(emi)))
}

func msgEcho(text string) string {
	return fmt.Sprintf("You asked: '%s'. I can help with loan applications, type 'restart' to begin a new one.", text)
}

func roundEMI(emi float64) int64 {
	return int64(math.Round(emi))
}
