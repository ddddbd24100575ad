package orchestratornode

import (
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
)

var explainTriggers = map[string]struct{}{
	"why":           {},
	"why?":          {},
	"explain":       {},
	"reason":        {},
	"what happened": {},
}

var resetCommands = map[string]struct{}{
	"restart": {},
	"new":     {},
	"apply":   {},
}

func isExplainTrigger(text string) bool {
	_, ok := explainTriggers[normalize(text)]
	return ok
}

func isResetCommand(text string) bool {
	_, ok := resetCommands[normalize(text)]
	return ok
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// parseAmount reads a non-negative integer, tolerating thousands separators.
func parseAmount(text string) (int64, error) {
	return parseNonNegative(strings.ReplaceAll(text, ",", ""))
}

func parseNonNegative(text string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", contractx.ErrValidation, text)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %d is negative", contractx.ErrValidation, v)
	}
	return v, nil
}

func parseTenure(text string) (int64, error) {
	v, err := parseNonNegative(text)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("%w: tenure must be at least one month", contractx.ErrValidation)
	}
	return v, nil
}
