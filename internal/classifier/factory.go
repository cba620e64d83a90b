package classifier

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/common"
)

// NewProvider builds the configured default provider, mirroring the
// teacher's llm.ProviderFactory selection but returning the single provider
// the classifier orchestrator asked for rather than a multi-client factory.
func NewProvider(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (Provider, error) {
	return NewProviderFor(ctx, cfg.LLM.DefaultProvider, cfg, logger)
}

// NewProviderFor builds a specific named provider, used both for the default
// selection and for an explicit fallback provider on persistent failure.
func NewProviderFor(ctx context.Context, name common.LLMProvider, cfg *common.Config, logger arbor.ILogger) (Provider, error) {
	switch name {
	case common.LLMProviderClaude:
		return NewClaudeProvider(&cfg.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiProvider(ctx, &cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
