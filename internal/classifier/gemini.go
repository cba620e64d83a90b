package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/freeworld-coach/jobpipeline/internal/common"
)

// GeminiProvider wraps google.golang.org/genai, adapted from the teacher's
// gemini_service.go/provider.go: same client construction, but the
// GenerateContentConfig is given a ResponseSchema so Gemini is constrained to
// strict JSON output instead of free text.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	retry       *RetryPolicy
	logger      arbor.ILogger
}

// NewGeminiProvider resolves the API key and builds a ready provider.
func NewGeminiProvider(ctx context.Context, cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	apiKey, err := common.ResolveAPIKey([]string{"GOOGLE_API_KEY", "PIPELINE_GEMINI_API_KEY"}, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("google api key is required for gemini provider: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		retry:       NewDefaultRetryPolicy(),
		logger:      logger,
	}, nil
}

func (p *GeminiProvider) Name() common.LLMProvider {
	return common.LLMProviderGemini
}

func (p *GeminiProvider) Close() error {
	p.client = nil
	return nil
}

func (p *GeminiProvider) Classify(ctx context.Context, classifierType Type, batch []Request) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	genaiSchema, err := convertToGenaiSchema(ResultSchema(classifierType))
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to convert classification schema for gemini")
		return fallbackResults(batch, "schema conversion failed"), nil
	}

	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr(p.temperature),
		SystemInstruction:  genai.NewContentFromText(SystemPrompt(classifierType), genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseSchema:     genaiSchema,
	}

	contents := []*genai.Content{genai.NewContentFromText(BatchPrompt(batch), genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	var apiErr error
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		resp, apiErr = p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == p.retry.MaxRetries {
			break
		}

		backoff := p.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		p.logger.Warn().Int("attempt", attempt+1).Err(apiErr).Dur("backoff", backoff).
			Msg("retrying gemini classification call")

		select {
		case <-ctx.Done():
			return fallbackResults(batch, "context cancelled"), nil
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		p.logger.Error().Err(apiErr).Msg("gemini classification batch failed")
		return fallbackResults(batch, apiErr.Error()), nil
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return fallbackResults(batch, "empty response from gemini"), nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallbackResults(batch, "empty text in gemini response"), nil
	}

	var payload struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse gemini json payload")
		return fallbackResults(batch, "malformed json response"), nil
	}

	return payload.Results, nil
}

// convertToGenaiSchema mirrors the teacher's provider.go helper of the same
// name: a recursive map[string]any -> genai.Schema converter, reused here so
// the classifier's shared ResultSchema drives Gemini's structured output.
func convertToGenaiSchema(schemaMap map[string]any) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if enumVals, ok := schemaMap["enum"].([]string); ok {
		schema.Enum = enumVals
	}

	if reqVals, ok := schemaMap["required"].([]string); ok {
		schema.Required = reqVals
	}

	if itemsMap, ok := schemaMap["items"].(map[string]any); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(propsMap))
		for name, propVal := range propsMap {
			propMap, ok := propVal.(map[string]any)
			if !ok {
				continue
			}
			propSchema, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, fmt.Errorf("failed to convert property %q: %w", name, err)
			}
			schema.Properties[name] = propSchema
		}
	}

	return schema, nil
}
