// Package notifications delivers decision and risk-block alerts to an
// operator-configured webhook, adapted from the teacher's whale-alert
// WebhookManager: the retry/auth/delivery mechanics are unchanged, but the
// payload is now a CycleResult's decision outcome rather than a
// WhaleAlert, and the webhook target comes from static config rather than
// a DB-backed, per-tenant webhook table (this engine has one operator, not
// many subscribers).
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"haka-futures-engine/config"
	"haka-futures-engine/decision"
	"haka-futures-engine/orchestrator"
)

// WebhookManager delivers decision outcomes to a single configured sink.
type WebhookManager struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// WebhookPayload is the JSON body posted to the configured webhook.
type WebhookPayload struct {
	Symbol          string    `json:"symbol"`
	GeneratedAt     time.Time `json:"generated_at"`
	Action          string    `json:"action"`
	Confidence      float64   `json:"confidence"`
	WeightedScore   float64   `json:"weighted_score"`
	Alignment       string    `json:"alignment"`
	Regime          string    `json:"regime"`
	RiskBlocked     bool      `json:"risk_blocked"`
	RiskBlockReason string    `json:"risk_block_reason,omitempty"`
	Message         string    `json:"message"`
}

// NewWebhookManager constructs a manager from the engine's webhook config.
// A zero-value URL disables delivery (SendAlert becomes a no-op).
func NewWebhookManager(cfg config.WebhookConfig) *WebhookManager {
	return &WebhookManager{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAlert evaluates a cycle result against the configured filters and, if
// it clears them, delivers it asynchronously.
func (wm *WebhookManager) SendAlert(result orchestrator.CycleResult) {
	if wm.cfg.URL == "" {
		return
	}
	if !wm.shouldSend(result) {
		return
	}

	payload := wm.CreatePayload(result)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  failed to marshal webhook payload: %v", err)
		return
	}

	go wm.deliverWebhook(payloadBytes)
}

// CreatePayload builds the webhook payload from a cycle result.
func (wm *WebhookManager) CreatePayload(result orchestrator.CycleResult) WebhookPayload {
	riskBlocked := result.RiskCheck != nil && !result.RiskCheck.Passed
	reason := ""
	if riskBlocked {
		reason = result.RiskCheck.BlockedBy
	}

	message := fmt.Sprintf("%s %s | confidence %.1f | alignment %s | regime %s",
		result.Symbol, result.Decision.Action, result.Decision.Confidence,
		result.Decision.Alignment, result.Regime)
	if riskBlocked {
		message = fmt.Sprintf("%s | BLOCKED: %s", message, reason)
	}

	return WebhookPayload{
		Symbol:          result.Symbol,
		GeneratedAt:     time.Now(),
		Action:          string(result.Decision.Action),
		Confidence:      result.Decision.Confidence,
		WeightedScore:   result.Decision.WeightedScore,
		Alignment:       string(result.Decision.Alignment),
		Regime:          string(result.Regime),
		RiskBlocked:     riskBlocked,
		RiskBlockReason: reason,
		Message:         message,
	}
}

// shouldSend filters out holds and low-confidence decisions; risk blocks on
// a non-hold action always clear the filter regardless of confidence, since
// a blocked trade is itself the noteworthy event.
func (wm *WebhookManager) shouldSend(result orchestrator.CycleResult) bool {
	if result.Decision.Action == decision.ActionHold {
		return false
	}
	if result.RiskCheck != nil && !result.RiskCheck.Passed {
		return true
	}
	return result.Decision.Confidence >= wm.cfg.MinConfidence
}

func (wm *WebhookManager) deliverWebhook(payload []byte) {
	maxRetries := wm.cfg.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var resp *http.Response
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, reqErr := http.NewRequest(http.MethodPost, wm.cfg.URL, bytes.NewReader(payload))
		if reqErr != nil {
			log.Printf("⚠️  failed to build webhook request: %v", reqErr)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "haka-futures-engine/1.0")
		if wm.cfg.AuthHeader != "" {
			req.Header.Set(wm.cfg.AuthHeader, wm.cfg.AuthValue)
		}

		log.Printf("🔹 sending webhook to %s (attempt %d/%d)", wm.cfg.URL, attempt, maxRetries)

		resp, err = wm.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			wm.logDelivery("SUCCESS", resp.StatusCode, "", attempt)
			return
		}
		if resp != nil {
			resp.Body.Close()
		}

		if attempt < maxRetries {
			time.Sleep(time.Duration(wm.cfg.RetryDelaySeconds) * time.Second)
		}
	}

	errMsg := ""
	statusCode := 0
	if err != nil {
		errMsg = err.Error()
	} else if resp != nil {
		statusCode = resp.StatusCode
	}
	wm.logDelivery("FAILED", statusCode, errMsg, maxRetries)
}

func (wm *WebhookManager) logDelivery(status string, code int, errMsg string, attempt int) {
	if errMsg != "" {
		log.Printf("⚠️  webhook delivery %s after %d attempt(s): %s", status, attempt, errMsg)
		return
	}
	log.Printf("✅ webhook delivery %s (status %d) after %d attempt(s)", status, code, attempt)
}
