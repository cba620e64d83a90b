package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/common"
)

// ClaudeProvider wraps github.com/anthropics/anthropic-sdk-go, adapted from
// the teacher's claude_service.go: same client construction and timeout
// context, but the call is a forced tool-use call so the model returns
// strict JSON matching the classification schema instead of free text.
type ClaudeProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
	temp      float32
	timeout   time.Duration
	retry     *RetryPolicy
	logger    arbor.ILogger
}

const classifyToolName = "submit_classifications"

// NewClaudeProvider resolves the API key and builds a ready provider.
func NewClaudeProvider(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	apiKey, err := common.ResolveAPIKey([]string{"ANTHROPIC_API_KEY", "PIPELINE_CLAUDE_API_KEY"}, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("anthropic api key is required for claude provider: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 60 * time.Second
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &ClaudeProvider{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		temp:      cfg.Temperature,
		timeout:   timeout,
		retry:     NewDefaultRetryPolicy(),
		logger:    logger,
	}, nil
}

func (p *ClaudeProvider) Name() common.LLMProvider {
	return common.LLMProviderClaude
}

func (p *ClaudeProvider) Close() error {
	return nil
}

func (p *ClaudeProvider) Classify(ctx context.Context, classifierType Type, batch []Request) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	schema := ResultSchema(classifierType)
	tool := anthropic.ToolParam{
		Name:        classifyToolName,
		Description: anthropic.String("Submit the classification result for every job in the batch"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   schema["required"],
		},
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt(classifierType)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BatchPrompt(batch))),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: classifyToolName},
		},
	}
	if p.temp > 0 {
		params.Temperature = anthropic.Float(float64(p.temp))
	}

	var resp *anthropic.Message
	var apiErr error
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}
		if attempt == p.retry.MaxRetries {
			break
		}

		backoff := p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		p.logger.Warn().Int("attempt", attempt+1).Err(apiErr).Dur("backoff", backoff).
			Msg("retrying claude classification call")

		select {
		case <-ctx.Done():
			return fallbackResults(batch, "context cancelled"), nil
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		p.logger.Error().Err(apiErr).Msg("claude classification batch failed")
		return fallbackResults(batch, apiErr.Error()), nil
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		var payload struct {
			Results []Result `json:"results"`
		}
		if err := json.Unmarshal(block.Input, &payload); err != nil {
			p.logger.Error().Err(err).Msg("failed to parse claude tool_use payload")
			return fallbackResults(batch, "malformed tool response"), nil
		}
		return payload.Results, nil
	}

	return fallbackResults(batch, "no tool_use block in response"), nil
}

func fallbackResults(batch []Request, cause string) []Result {
	out := make([]Result, len(batch))
	for i, req := range batch {
		out[i] = errorResult(req.JobID, cause)
	}
	return out
}
