package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrDocumentFailed  = errors.New("document generation failed")
	ErrReplierDisabled = errors.New("fallback replier is not configured")
)
