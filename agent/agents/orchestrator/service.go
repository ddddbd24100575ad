package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	"github.com/tanpawarit/loan-assistant/agent/identity"
	nodex "github.com/tanpawarit/loan-assistant/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
	"github.com/tanpawarit/loan-assistant/pkg/metrics"
)

var ErrInvalidMessage = nodex.ErrInvalidMessage

const DefaultSessionID = nodex.DefaultSessionID

const msgUnavailable = "Sorry, I'm having trouble right now. Please try again in a moment."

// Deps wires the orchestrator. Store and Identity are required.
type Deps struct {
	Store     statex.Store
	Identity  identity.Store
	Documents contractx.DocumentGenerator
	Replier   contractx.FallbackReplier
	Retrier   contractx.EffectRetrier
	Metrics   *metrics.Metrics
}

type Config struct {
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type TurnResult struct {
	Reply       string
	SessionID   string
	File        string
	LastReason  string
	LastDetails *underwriting.Details
	Effects     []contractx.EffectResult
}

// Orchestrator runs one dialogue turn at a time per session id.
type Orchestrator struct {
	store   statex.Store
	deps    nodex.Deps
	locks   *statex.Locker
	metrics *metrics.Metrics

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("identity store is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		store: deps.Store,
		deps: nodex.Deps{
			Identity:  deps.Identity,
			Documents: deps.Documents,
			Replier:   deps.Replier,
			Retrier:   deps.Retrier,
			Metrics:   deps.Metrics,
		},
		locks:   statex.NewLocker(),
		metrics: deps.Metrics,
		now:     now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn applies one utterance to the session. Turns for the same session
// id never interleave. Only ErrInvalidMessage is returned; any other failure
// is logged and answered with an apology, leaving the session as last saved.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID string, message string) (TurnResult, error) {
	in := nodex.GraphInput{SessionID: sessionID, Text: message}
	key, err := nodex.ValidateRequest(in, o.now)
	if err != nil {
		return TurnResult{}, err
	}

	unlock := o.locks.Lock(key.SessionID)
	defer unlock()

	start := time.Now()
	out, err := o.graphRunner.Invoke(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("session_id", key.SessionID).Msg("turn failed")
		return TurnResult{Reply: msgUnavailable, SessionID: key.SessionID}, nil
	}
	o.metrics.ObserveTurn(out.StartStep, start)

	return TurnResult{
		Reply:       out.Reply,
		SessionID:   out.SessionID,
		File:        out.File,
		LastReason:  out.LastReason,
		LastDetails: out.LastDetails,
		Effects:     out.Effects,
	}, nil
}
