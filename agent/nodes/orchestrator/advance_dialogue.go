package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	"github.com/tanpawarit/loan-assistant/agent/identity"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
	"github.com/tanpawarit/loan-assistant/pkg/metrics"
)

// Deps are the collaborators a turn may call. Documents, Replier, Retrier and
// Metrics are optional.
type Deps struct {
	Identity  identity.Store
	Documents contractx.DocumentGenerator
	Replier   contractx.FallbackReplier
	Retrier   contractx.EffectRetrier
	Metrics   *metrics.Metrics
}

type stepHandler func(ctx context.Context, d *dialogue) (string, error)

var stepHandlers = map[statex.Step]stepHandler{
	statex.StepStart:            handleStart,
	statex.StepPhone:            handlePhone,
	statex.StepAssocPhone:       handleAssocPhone,
	statex.StepGuestName:        handleGuestName,
	statex.StepGuestSalary:      handleGuestSalary,
	statex.StepGuestCreditScore: handleGuestCreditScore,
	statex.StepLoanAmount:       handleLoanAmount,
	statex.StepTenure:           handleTenure,
	statex.StepPost:             handlePost,
}

// dialogue is the per-turn view the step handlers work on.
type dialogue struct {
	deps Deps
	in   *GraphState
	st   *statex.Session
	text string
}

// AdvanceDialogue runs the explanation interceptor and then the handler of
// the current step. Handler errors are infrastructure failures: they are
// logged and answered with a retry prompt without moving the step.
func AdvanceDialogue(ctx context.Context, in *GraphState, deps Deps) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("%w: identity store is required", contractx.ErrValidation)
	}

	st := in.Session
	if isExplainTrigger(in.Text) {
		if reason := st.LastReason(); reason != "" {
			in.Reply = msgReason(reason)
		} else {
			in.Reply = msgClarify
		}
		return in, nil
	}

	handler, ok := stepHandlers[st.Step]
	if !ok {
		return nil, fmt.Errorf("%w: %q", statex.ErrUnknownStep, st.Step)
	}

	d := &dialogue{deps: deps, in: in, st: st, text: in.Text}
	reply, err := handler(ctx, d)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", in.SessionID).
			Str("step", string(st.Step)).
			Msg("dialogue step failed")
		in.Reply = msgTryAgain
		return in, nil
	}

	in.Reply = reply
	log.Debug().
		Str("session_id", in.SessionID).
		Str("from", string(in.StartStep)).
		Str("to", string(st.Step)).
		Msg("dialogue advanced")
	return in, nil
}

// advance moves the session and fails loudly on a transition the graph does
// not allow.
func (d *dialogue) advance(to statex.Step) error {
	if err := d.st.Advance(to); err != nil {
		return fmt.Errorf("advance dialogue: %w", err)
	}
	return nil
}

func (d *dialogue) trimmed() string {
	return strings.TrimSpace(d.text)
}

func handleStart(_ context.Context, d *dialogue) (string, error) {
	if err := d.advance(statex.StepPhone); err != nil {
		return "", err
	}
	return msgGreeting, nil
}
