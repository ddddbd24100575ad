package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: dialogue produced an empty reply", contractx.ErrValidation)
	}

	return GraphOutput{
		Reply:       reply,
		SessionID:   in.SessionID,
		File:        in.File,
		LastReason:  in.Session.LastReason(),
		LastDetails: in.Session.LastDetails(),
		Effects:     in.Effects,
		StartStep:   string(in.StartStep),
	}, nil
}
