package orchestratornode

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
)

func handlePost(ctx context.Context, d *dialogue) (string, error) {
	text := d.trimmed()
	if text == "" {
		return msgPostBlank, nil
	}

	if isResetCommand(text) {
		d.st.Reset(d.in.Now)
		return msgRestart, nil
	}

	if reply := fallbackReply(ctx, d, text); reply != "" {
		return reply, nil
	}
	return cannedReply(d, text), nil
}

// fallbackReply asks the optional replier. Any failure degrades to the
// canned path.
func fallbackReply(ctx context.Context, d *dialogue, text string) string {
	replier := d.deps.Replier
	if replier == nil || !replier.Available() {
		return ""
	}

	reply, err := replier.Reply(ctx, text, contractx.ReplyContext{
		LastReason:  d.st.LastReason(),
		LastDetails: d.st.LastDetails(),
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", d.in.SessionID).Msg("fallback replier failed")
		return ""
	}
	return strings.TrimSpace(reply)
}

func cannedReply(d *dialogue, text string) string {
	low := strings.ToLower(text)
	switch {
	case strings.Contains(low, "interest") || strings.Contains(low, "emi"):
		if details := d.st.LastDetails(); details != nil && details.EMI != nil && *details.EMI > 0 {
			return msgEMI(*details.EMI)
		}
		return msgEMIUnknown
	case strings.Contains(low, "help") || strings.Contains(low, "support"):
		return msgHelp
	default:
		return msgEcho(d.text)
	}
}
