package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
	"github.com/tanpawarit/loan-assistant/agent/underwriting"
)

// DefaultSessionID is used when a request carries no session id.
const DefaultSessionID = "__default__"

const MaxMessageLength = 4096

var ErrInvalidMessage = errors.New("message is too long")

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply       string
	SessionID   string
	File        string
	LastReason  string
	LastDetails *underwriting.Details
	Effects     []contractx.EffectResult
	// StartStep is the step the turn began in.
	StartStep string
}

// GraphState is threaded through every node of one turn.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session   *statex.Session
	StartStep statex.Step

	Reply string
	// File is set only on the turn that produced a document.
	File    string
	Effects []contractx.EffectResult
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	if utf8.RuneCountInString(in.Text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: %d characters max", ErrInvalidMessage, MaxMessageLength)
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      in.Text,
		Now:       nowFn().UTC(),
	}, nil
}
