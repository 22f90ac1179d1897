// Package suggest asks a generative model for two gift ideas matching a
// participant profile and falls back to a fixed pair whenever the model is
// unavailable or its answer is unusable.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"secretsanta/internal/roster"
	"secretsanta/pkg/domain"
)

const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMarketplaceBase = "https://lista.mercadolivre.com.br"
	// BudgetCeiling is the spending limit stated in the prompt.
	BudgetCeiling = "R$ 50,00"

	priceRangeSuffix = "_PriceRange_0-50"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Config parameterizes a Client. An empty APIKey disables the model call and
// an empty Endpoint selects the Gemini API default.
type Config struct {
	APIKey          string
	Model           string
	Endpoint        string
	MarketplaceBase string
	HTTPClient      *http.Client
	Logger          Logger
}

// Request describes whom the suggestions are for.
type Request struct {
	Participant domain.Participant
	ManualGift  string
	QuizAnswers map[int]string
}

// ServiceError reports why the model answer could not be used. Callers of
// Suggest never see it; it is logged and replaced by the fallback pair.
type ServiceError struct {
	Stage string
	Err   error
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("suggestion service %s: %v", e.Stage, e.Err)
}

func (e ServiceError) Unwrap() error { return e.Err }

// Client asks Gemini for suggestions through the genai SDK.
type Client struct {
	apiKey          string
	model           string
	endpoint        string
	marketplaceBase string
	http            *http.Client
	logger          Logger
}

// New constructs a client, filling defaults for empty fields.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		endpoint:        strings.TrimRight(cfg.Endpoint, "/"),
		marketplaceBase: strings.TrimRight(cfg.MarketplaceBase, "/"),
		http:            cfg.HTTPClient,
		logger:          cfg.Logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.marketplaceBase == "" {
		c.marketplaceBase = DefaultMarketplaceBase
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c
}

// Suggest returns exactly two suggestions, from the model when possible and
// from Fallback otherwise.
func (c *Client) Suggest(ctx context.Context, req Request) []domain.GiftSuggestion {
	out, err := c.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("gift suggestions unavailable; using fallback", "participant", req.Participant.ID, "error", err)
		return c.Fallback()
	}
	return out
}

// Generate calls the model and returns its two suggestions enriched with
// marketplace links, or a ServiceError.
func (c *Client) Generate(ctx context.Context, req Request) ([]domain.GiftSuggestion, error) {
	if c.apiKey == "" {
		return nil, ServiceError{Stage: "config", Err: fmt.Errorf("no API key configured")}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.http,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.endpoint},
	})
	if err != nil {
		return nil, ServiceError{Stage: "config", Err: err}
	}
	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(BuildPrompt(req)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, ServiceError{Stage: classify(err), Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ServiceError{Stage: "decode", Err: fmt.Errorf("empty model response")}
	}
	var parsed modelAnswer
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, ServiceError{Stage: "decode", Err: err}
	}
	if len(parsed.Suggestions) != 2 {
		return nil, ServiceError{Stage: "validate", Err: fmt.Errorf("expected 2 suggestions, got %d", len(parsed.Suggestions))}
	}
	out := make([]domain.GiftSuggestion, 0, 2)
	for _, s := range parsed.Suggestions {
		name := strings.TrimSpace(s.Gift)
		if name == "" {
			return nil, ServiceError{Stage: "validate", Err: fmt.Errorf("suggestion without gift name")}
		}
		out = append(out, domain.GiftSuggestion{
			GiftName:       name,
			Reason:         strings.TrimSpace(s.Reason),
			MatchScore:     clampScore(s.Match),
			EstimatedPrice: strings.TrimSpace(s.EstimatedPrice),
			PurchaseLink:   c.MarketplaceLink(name),
		})
	}
	return out, nil
}

// MarketplaceLink builds the price-capped marketplace search URL for a gift.
func (c *Client) MarketplaceLink(gift string) string {
	return c.marketplaceBase + "/" + escapeComponent(gift) + priceRangeSuffix
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}

// Fallback returns the fixed pair used whenever the model cannot answer.
func (c *Client) Fallback() []domain.GiftSuggestion {
	return []domain.GiftSuggestion{
		{
			GiftName:       "Artisanal chocolate box",
			Reason:         "A treat almost everyone enjoys.",
			MatchScore:     85,
			EstimatedPrice: "R$ 40,00",
			PurchaseLink:   c.marketplaceBase + "/chocolate-artesanal" + priceRangeSuffix,
		},
		{
			GiftName:       "Thermal or personalized mug",
			Reason:         "Useful every day and built to last.",
			MatchScore:     75,
			EstimatedPrice: "R$ 45,00",
			PurchaseLink:   c.marketplaceBase + "/caneca-termica" + priceRangeSuffix,
		},
	}
}

// BuildPrompt renders the shopper instructions and the participant's answers.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Act as an expert personal shopper.\n")
	if req.Participant.IsPet() {
		b.WriteString("The recipient is A PET (dog).\n")
	} else {
		b.WriteString("The recipient is an adult human.\n")
	}
	fmt.Fprintf(&b, "Name: %s.\n\n", req.Participant.Name)
	b.WriteString("Analyse the profile and suggest TWO different gifts that can be bought online.\n\n")
	b.WriteString("STRICT RULES:\n")
	fmt.Fprintf(&b, "1. Budget ceiling of %s (Brazil).\n", BudgetCeiling)
	b.WriteString("2. Be specific (a named product, not a category).\n")
	b.WriteString("3. FORBIDDEN: dull household items (dish towels, brooms, food containers).\n")
	fmt.Fprintf(&b, "4. Both must differ from the manual choice: %q.\n", req.ManualGift)
	b.WriteString("5. They must differ from each other.\n")
	b.WriteString("6. Estimate the average price.\n\n")
	b.WriteString(`Reply with JSON ONLY in exactly this format:
{"suggestions":[{"gift":"Product 1","reason":"Reason 1","match":95,"estimated_price":"R$ 45,00"},{"gift":"Product 2","reason":"Reason 2","match":88,"estimated_price":"R$ 39,90"}]}`)
	b.WriteString("\n\nPROFILE:\n")
	keys := make([]int, 0, len(req.QuizAnswers))
	for k := range req.QuizAnswers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "Q: %s A: %s\n", roster.Question(k), req.QuizAnswers[k])
	}
	return b.String()
}

// classify maps an SDK error onto the stage that failed.
func classify(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return "status"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "transport"
	}
	return "decode"
}

type modelAnswer struct {
	Suggestions []struct {
		Gift           string  `json:"gift"`
		Reason         string  `json:"reason"`
		Match          float64 `json:"match"`
		EstimatedPrice string  `json:"estimated_price"`
	} `json:"suggestions"`
}
