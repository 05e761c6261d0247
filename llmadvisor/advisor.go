// Package llmadvisor adapts the teacher's OpenAI-compatible LLM client into
// a confidence-modulation-only advisor: it never overrides
// DecisionCoreAgent's action, only nudges confidence. Of its structured
// reasoning envelope, the decision path consumes only the confidence
// adjustment; the orchestrator neither logs nor persists the reasoning.
package llmadvisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"haka-futures-engine/cache"
	"haka-futures-engine/decision"
)

// reviewCooldown keeps the advisor from calling the external model more
// than once per symbol within this window, following the teacher's
// LLMCache cooldown pattern.
const reviewCooldown = 2 * time.Minute

const systemPrompt = "You are a disciplined crypto futures risk reviewer. You never invent data outside what is given. Respond only with the requested JSON envelope."

// Client is an OpenAI-compatible chat completion client, unchanged in
// shape from the teacher's llm.Client.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

func NewClient(endpoint, apiKey, model string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Transport: transport},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletion(ctx context.Context, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
		MaxTokens:   500,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("advisor API error %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Envelope is the structured reasoning record the advisor returns. Only its
// ConfidenceAdjustment is applied (see Apply); it is not stored with the
// decision and is never fed back into DecisionCoreAgent or RiskAuditAgent.
type Envelope struct {
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	Reasoning            string  `json:"reasoning"`
	FlaggedConcerns      []string `json:"flagged_concerns,omitempty"`
}

// Advisor wraps Client with the confidence-only contract. cache may be nil
// to skip memoization and cooldown enforcement entirely.
type Advisor struct {
	client  *Client
	enabled bool
	cache   *cache.AdvisorCache
}

func NewAdvisor(client *Client, enabled bool) *Advisor {
	return &Advisor{client: client, enabled: enabled}
}

// WithCache attaches a Redis-backed cache for review memoization and
// per-symbol cooldown, returning the same Advisor for chaining.
func (a *Advisor) WithCache(c *cache.AdvisorCache) *Advisor {
	a.cache = c
	return a
}

// Review asks the advisor to comment on an already-computed decision. On
// any failure, or when disabled, it returns a neutral no-op envelope so the
// caller's confidence is left untouched. When a cache is attached, an
// identical decision reviewed within the last 10 minutes is served from
// cache, and any other decision for a symbol reviewed within reviewCooldown
// gets a neutral envelope, instead of calling the external model again.
func (a *Advisor) Review(ctx context.Context, symbol string, result decision.DecisionResult) Envelope {
	if !a.enabled {
		return Envelope{}
	}

	dataHash := ""
	if a.cache != nil {
		dataHash = cache.GenerateDataHash(result)
		var cached Envelope
		if a.cache.GetReview(ctx, symbol, dataHash, &cached) {
			return cached
		}
		if a.cache.IsInCooldown(ctx, symbol) {
			return Envelope{Reasoning: "advisor in cooldown, confidence left unadjusted"}
		}
	}

	prompt := fmt.Sprintf(
		`Symbol: %s
Action: %s
WeightedScore: %.2f
Confidence: %.1f
Alignment: %s
Respond with JSON: {"confidence_adjustment": <float -20..20>, "reasoning": "<string>", "flagged_concerns": [<string>...]}`,
		symbol, result.Action, result.WeightedScore, result.Confidence, result.Alignment,
	)

	content, err := a.client.chatCompletion(ctx, prompt)
	if err != nil {
		return Envelope{Reasoning: fmt.Sprintf("advisor unavailable: %v", err)}
	}

	var env Envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return Envelope{Reasoning: "advisor returned unparseable output, ignored"}
	}

	if env.ConfidenceAdjustment > 20 {
		env.ConfidenceAdjustment = 20
	}
	if env.ConfidenceAdjustment < -20 {
		env.ConfidenceAdjustment = -20
	}

	if a.cache != nil {
		_ = a.cache.SetReview(ctx, symbol, dataHash, env, 10*time.Minute)
		_ = a.cache.SetCooldown(ctx, symbol, reviewCooldown)
	}
	return env
}

// Apply nudges a DecisionResult's confidence by the envelope's adjustment,
// clamped to [0, 100]. The action is never changed.
func Apply(result *decision.DecisionResult, env Envelope) {
	result.Confidence += env.ConfidenceAdjustment
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
}
