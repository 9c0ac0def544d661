package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wardrobeapi/config"
	"wardrobeapi/metrics"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var (
	ErrContentBlocked = errors.New("content blocked by safety settings")
	ErrEmptyResponse  = errors.New("empty response from text generator")
)

const (
	OperationAnalyzeClothing = "analyze_clothing"
	OperationRecommend       = "recommend_outfits"
	OperationEmbed           = "embed"
)

type LLMResponse struct {
	Response           string `json:"response"`
	Model              string `json:"model"`
	InputTokenCount    int32  `json:"input_token_count"`
	Thoughts           string `json:"thoughts"`
	ThoughtsTokenCount int32  `json:"thoughts_token_count"`
	OutputTokenCount   int32  `json:"output_token_count"`
	TotalTokenCount    int32  `json:"total_token_count"`
	IsTest             bool   `json:"is_test"`
}

// StylistLLM is the external text generator. Responses are free text that is
// expected, but not guaranteed, to hold JSON.
type StylistLLM interface {
	AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*LLMResponse, error)
	RecommendOutfits(ctx context.Context, prompt string) (*LLMResponse, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// generativeModels is the part of *genai.Models the processor uses.
type generativeModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type LLMConfig struct {
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	Breaker        CircuitBreakerConfig
}

func LLMConfigFrom(cfg *config.Config) LLMConfig {
	return LLMConfig{
		Model:          cfg.GeminiModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.LLMTimeout,
		RatePerSecond:  cfg.LLMRatePerSecond,
		Burst:          cfg.LLMBurst,
		Breaker: CircuitBreakerConfig{
			MaxFailures:  cfg.BreakerMaxFailures,
			OpenDuration: cfg.BreakerOpenDuration,
		},
	}
}

type GoogleLLMProcessor struct {
	models  generativeModels
	cfg     LLMConfig
	limiter *rate.Limiter
	breaker *CircuitBreaker
}

func NewGoogleLLMProcessor(ctx context.Context, apiKey string, cfg LLMConfig) (*GoogleLLMProcessor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newGoogleLLMProcessor(client.Models, cfg), nil
}

func newGoogleLLMProcessor(models generativeModels, cfg LLMConfig) *GoogleLLMProcessor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &GoogleLLMProcessor{
		models:  models,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewCircuitBreaker("gemini", cfg.Breaker),
	}
}

func (p *GoogleLLMProcessor) AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*LLMResponse, error) {
	if len(image) == 0 {
		return nil, errors.New("no image to analyze")
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
			{Text: ClothingAnalysisPrompt},
		},
	}}
	return p.generate(ctx, OperationAnalyzeClothing, contents, 0.2)
}

func (p *GoogleLLMProcessor) RecommendOutfits(ctx context.Context, prompt string) (*LLMResponse, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	return p.generate(ctx, OperationRecommend, contents, 0.7)
}

func (p *GoogleLLMProcessor) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.call(ctx, OperationEmbed, func(ctx context.Context) (interface{}, error) {
		result, err := p.models.EmbedContent(ctx, p.cfg.EmbeddingModel, []*genai.Content{{
			Parts: []*genai.Part{{Text: text}},
		}}, nil)
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
			return nil, ErrEmptyResponse
		}
		return result.Embeddings[0].Values, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (p *GoogleLLMProcessor) generate(ctx context.Context, operation string, contents []*genai.Content, temperature float32) (*LLMResponse, error) {
	out, err := p.call(ctx, operation, func(ctx context.Context) (interface{}, error) {
		result, err := p.models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			CandidateCount:   1,
			Temperature:      floatPointer(temperature),
		})
		if err != nil {
			return nil, err
		}
		return toLLMResponse(result, p.cfg.Model)
	})
	if err != nil {
		return nil, err
	}
	return out.(*LLMResponse), nil
}

// call applies the rate limit, the per-call timeout and the breaker, in that order.
func (p *GoogleLLMProcessor) call(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		metrics.LLMRequests.WithLabelValues(operation, "rate_limited").Inc()
		return nil, fmt.Errorf("%s: rate limit: %w", operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	started := time.Now()
	out, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return fn(ctx)
	})
	metrics.LLMLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	metrics.LLMRequests.WithLabelValues(operation, outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrContentBlocked):
		return "blocked"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}

func toLLMResponse(result *genai.GenerateContentResponse, model string) (*LLMResponse, error) {
	if result == nil {
		return nil, ErrEmptyResponse
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrContentBlocked, result.PromptFeedback.BlockReason)
	}
	text, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		return nil, err
	}
	if text.Text == "" {
		return nil, ErrEmptyResponse
	}
	response := &LLMResponse{
		Response: text.Text,
		Thoughts: text.Thoughts,
		Model:    model,
	}
	if result.UsageMetadata != nil {
		response.InputTokenCount = result.UsageMetadata.PromptTokenCount
		response.ThoughtsTokenCount = result.UsageMetadata.ThoughtsTokenCount
		response.OutputTokenCount = result.UsageMetadata.CandidatesTokenCount
		response.TotalTokenCount = result.UsageMetadata.TotalTokenCount
	}
	return response, nil
}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	var thinkingContent string
	for _, c := range result.Candidates {
		if c.FinishReason == genai.FinishReasonSafety {
			return nil, fmt.Errorf("%w: finish reason %s", ErrContentBlocked, c.FinishReason)
		}
		for _, rating := range c.SafetyRatings {
			if rating.Blocked {
				fmt.Println("[Safety] rating:", rating.Category, "Score:", rating.Probability, " Blocked:", rating.Blocked)
				return nil, fmt.Errorf("%w: %s", ErrContentBlocked, rating.Category)
			}
		}
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingContent = part.Text
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

// StopRetrying marks errors that another attempt cannot fix.
func StopRetrying(err error) error {
	if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrCircuitOpen) {
		return Permanent(err)
	}
	return err
}

func floatPointer(f float32) *float32 {
	return &f
}
