package qstash

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
)

// EffectRetrier publishes failed approval side effects so an external
// consumer can replay them at least once.
type EffectRetrier struct {
	client      *Client
	destination string
}

var _ contractx.EffectRetrier = (*EffectRetrier)(nil)

func NewEffectRetrier(client *Client, destination string) *EffectRetrier {
	return &EffectRetrier{client: client, destination: destination}
}

func (r *EffectRetrier) Retry(ctx context.Context, job contractx.EffectRetry) error {
	dedup := fmt.Sprintf("%s-%s-%d", job.Kind, job.SessionID, job.FailedAt.UnixNano())
	id, err := r.client.Publish(ctx, r.destination, job, dedup)
	if err != nil {
		return fmt.Errorf("publish %s retry: %w", job.Kind, err)
	}
	log.Info().
		Str("kind", string(job.Kind)).
		Str("session_id", job.SessionID).
		Str("message_id", id).
		Msg("side effect queued for retry")
	return nil
}
