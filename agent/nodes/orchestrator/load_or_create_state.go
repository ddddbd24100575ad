package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	statex "github.com/tanpawarit/loan-assistant/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrStateNotFound):
		st = statex.NewSession(in.SessionID, in.Now)
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}

	in.Session = st
	in.StartStep = st.Step
	return in, nil
}
