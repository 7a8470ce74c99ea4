package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/constraint"
	"github.com/kailas-cloud/siprank/internal/domain/product"
	"github.com/kailas-cloud/siprank/internal/metrics"
)

// extractionPrompt steers the chat model toward the fixed constraint
// vocabulary. The guidelines encode merchandising policy: "sweet" must not
// set a sugar cap, "regular caffeine" must not filter at all.
const extractionPrompt = `You are a beverage product constraint extractor.
Extract structured constraints from customer queries about beverages.

Return ONLY valid JSON with these exact fields (use null if not mentioned):
{
  "category": null or one of ["brewed", "cold_brew", "espresso", "frappuccino", "refresher", "tea"],
  "temperature": null or one of ["hot", "iced", "blended"],
  "max_calories": null or number,
  "max_sugar": null or number,
  "max_price": null or number,
  "dairy_free": null or boolean,
  "vegan": null or boolean,
  "caffeine_level": null or one of ["none", "low", "medium", "high"]
}

Guidelines:
- "sweet" or "sugary" → don't set max_sugar (they WANT sugar)
- "low sugar" or "not too sweet" → max_sugar: 20
- "no dairy" or "lactose free" → dairy_free: true
- "coffee" → category: "espresso" or "brewed"
- "strong coffee" or "extra caffeine" or "high caffeine" → caffeine_level: "high"
- "decaf" or "no caffeine" or "caffeine free" → caffeine_level: "none"
- "mild" or "low caffeine" or "not too much caffeine" → caffeine_level: "low"
- "regular caffeine" or "medium caffeine" or "normal caffeine" → caffeine_level: null (don't filter, most products are medium)
- "need the caffeine" or "need caffeine" or "pick me up" without "strong" → caffeine_level: null
- "cold" → temperature: "iced" or "blended"
- "budget" or "cheap" → max_price: 5.0
- "under $X" → max_price: X

Examples:
Query: "I want something sweet and cold but I'm trying to avoid dairy"
Output: {"category": null, "temperature": "iced", "max_calories": null, "max_sugar": null, "max_price": null, "dairy_free": true, "vegan": null, "caffeine_level": null}

Query: "Strong coffee under $5"
Output: {"category": "espresso", "temperature": null, "max_calories": null, "max_sugar": null, "max_price": 5.0, "dairy_free": null, "vegan": null, "caffeine_level": "high"}

Query: "Iced tea with low sugar and no caffeine"
Output: {"category": "tea", "temperature": "iced", "max_calories": null, "max_sugar": 20, "max_price": null, "dairy_free": null, "vegan": null, "caffeine_level": "none"}`

// Extractor turns a natural-language query into a constraint set via a
// chat completion in JSON mode.
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ExtractorConfig holds the constraint extraction provider settings.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewExtractor creates an OpenAI-compatible constraint extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Extractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// rawConstraints is the provider wire format. All fields are nullable.
type rawConstraints struct {
	Category      *string  `json:"category"`
	Temperature   *string  `json:"temperature"`
	MaxCalories   *float64 `json:"max_calories"`
	MaxSugar      *float64 `json:"max_sugar"`
	MaxPrice      *float64 `json:"max_price"`
	DairyFree     *bool    `json:"dairy_free"`
	Vegan         *bool    `json:"vegan"`
	CaffeineLevel *string  `json:"caffeine_level"`
}

// Extract parses constraints out of a query. Errors are wrapped with
// domain.ErrExtractionProviderError; the caller decides whether to degrade.
func (e *Extractor) Extract(ctx context.Context, query string) (constraint.Set, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	start := time.Now()

	resp, err := e.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return constraint.Set{}, parseAPIError(err, "extraction", domain.ErrExtractionProviderError)
	}

	if len(resp.Choices) == 0 {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return constraint.Set{}, fmt.Errorf("empty extraction response: %w", domain.ErrExtractionProviderError)
	}

	var raw rawConstraints
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return constraint.Set{}, fmt.Errorf("parse extraction response: %v: %w", err, domain.ErrExtractionProviderError)
	}

	metrics.ExtractionRequestsTotal.WithLabelValues(e.model, "success").Inc()

	if e.logger != nil {
		e.logger.Debug("constraints extracted",
			zap.String("model", e.model),
			zap.Duration("duration", duration),
		)
	}

	return raw.toSet(), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Extractor) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// toSet converts the wire format to the domain constraint set. Enum
// validation happens downstream in Sanitized; this is a plain mapping.
func (r rawConstraints) toSet() constraint.Set {
	var s constraint.Set

	if r.Category != nil {
		c := product.Category(*r.Category)
		s.Category = &c
	}
	if r.Temperature != nil {
		t := product.Temperature(*r.Temperature)
		s.Temperature = &t
	}
	if r.CaffeineLevel != nil {
		l := constraint.CaffeineLevel(*r.CaffeineLevel)
		s.CaffeineLevel = &l
	}
	s.MaxCalories = r.MaxCalories
	s.MaxSugar = r.MaxSugar
	s.MaxPrice = r.MaxPrice
	s.DairyFree = r.DairyFree
	s.Vegan = r.Vegan

	return s
}
