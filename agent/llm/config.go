package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/loan-assistant/agent/contract"
	openrouterx "github.com/tanpawarit/loan-assistant/pkg/openrouter"
)

type Provider string

const (
	// ProviderOpenAI calls the chat completions API through the OpenAI SDK.
	ProviderOpenAI Provider = "openai"
	// ProviderOpenRouter runs an eino prompt+model graph against OpenRouter.
	ProviderOpenRouter Provider = "openrouter"
	ProviderNone       Provider = "none"
)

type Config struct {
	Provider           Provider      `envconfig:"PROVIDER" split_words:"true" default:"openai"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-3.5-turbo"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"150"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.6"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	MaxRetries         int           `envconfig:"MAX_RETRIES" split_words:"true" default:"1"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

// Enabled reports whether a replier should be built at all. A missing key
// disables the replier rather than failing startup.
func (c Config) Enabled() bool {
	return c.Provider != ProviderNone && strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderNone:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	if c.Enabled() && strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: llm model is required", contractx.ErrValidation)
	}
	if c.MaxCompletionToken < 0 {
		return fmt.Errorf("%w: max completion token must be >= 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) baseURL() string {
	if v := strings.TrimSpace(c.BaseURL); v != "" {
		return v
	}
	if c.Provider == ProviderOpenRouter {
		return "https://openrouter.ai/api/v1"
	}
	return "https://api.openai.com/v1"
}

func (c Config) endpoint() openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            c.baseURL(),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		MaxRetries:         c.MaxRetries,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
