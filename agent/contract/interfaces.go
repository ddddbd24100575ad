package contract

import "context"

// DocumentGenerator turns an approved application into an artifact and returns
// an opaque reference to it.
type DocumentGenerator interface {
	Generate(ctx context.Context, req DocumentRequest) (string, error)
}

// FallbackReplier answers free-form questions once an application is finished.
// An empty reply means no reply was produced.
type FallbackReplier interface {
	Available() bool
	Reply(ctx context.Context, utterance string, rc ReplyContext) (string, error)
}

// EffectRetrier hands a failed approval side effect to an external
// reliability layer.
type EffectRetrier interface {
	Retry(ctx context.Context, job EffectRetry) error
}
