package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

const aiSystemPrompt = `You are a disciplined crypto perpetual-futures signal assistant. ` +
	`Given market indicators and optional historical performance notes, reply with ` +
	`strict JSON only: {"signal": "LONG"|"SHORT"|"WAIT", "reason": "<short text>"}. ` +
	`No markdown, no extra keys.`

// AIRequest is the JSON body sent to the configured AI provider endpoint.
type AIRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// aiReply is the expected {"signal":..., "reason":...} body, tolerant of
// the provider wrapping it in a markdown code fence.
type aiReply struct {
	Signal string `json:"signal"`
	Reason string `json:"reason"`
}

// AIVoter calls a configured HTTP AI-completion endpoint and parses its
// reply into an IndividualSignal. No SDK in the corpus targets a specific
// LLM provider, so this speaks a minimal provider-agnostic JSON contract
// over plain net/http rather than fabricating a client library.
type AIVoter struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

// NewAIVoter builds an AIVoter against the given provider endpoint.
func NewAIVoter(url, apiKey, model string, timeout time.Duration) *AIVoter {
	return &AIVoter{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
		model:      model,
	}
}

func (v *AIVoter) Source() string { return "ai" }

// Evaluate composes the system prompt, any memory context, and the market
// snapshot into a single prompt, calls the provider, and parses its reply.
// Any failure (network, non-2xx, malformed JSON, invalid signal value)
// degrades to a WAIT signal rather than propagating an error — a voter
// failure must never abort the ensemble tick.
func (v *AIVoter) Evaluate(ctx context.Context, md model.MarketData, mem model.MemoryContext) (model.IndividualSignal, error) {
	sig := model.IndividualSignal{
		Source:     v.Source(),
		Confidence: decimal.NewFromFloat(0.8),
		Weight:     DefaultWeights[v.Source()],
	}

	prompt := aiSystemPrompt + "\n\n" + mem.ToPrompt() + "\n" + marketPrompt(md)

	body, err := json.Marshal(AIRequest{
		Model:       v.model,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   60,
	})
	if err != nil {
		sig.Kind, sig.Reason = model.SignalWait, "failed to build request: "+err.Error()
		return sig, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		sig.Kind, sig.Reason = model.SignalWait, "failed to build request: "+err.Error()
		return sig, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("AI voter request failed")
		sig.Kind, sig.Reason = model.SignalWait, "request failed"
		return sig, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		log.Warn().Int("status", resp.StatusCode).Msg("AI voter non-2xx response")
		sig.Kind, sig.Reason = model.SignalWait, fmt.Sprintf("status %d", resp.StatusCode)
		return sig, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("AI voter reply unreadable")
		sig.Kind, sig.Reason = model.SignalWait, "unparseable reply"
		return sig, nil
	}
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var reply aiReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reply); err != nil {
		log.Warn().Err(err).Msg("AI voter reply not JSON")
		sig.Kind, sig.Reason = model.SignalWait, "unparseable reply"
		return sig, nil
	}

	kind := parseAISignal(reply.Signal)
	sig.Kind = kind
	sig.Reason = reply.Reason
	if sig.Reason == "" {
		sig.Reason = "AI analysis"
	}
	return sig, nil
}

func parseAISignal(raw string) model.SignalKind {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "`\"' \n\t")
	switch model.SignalKind(cleaned) {
	case model.SignalLong, model.SignalShort, model.SignalWait:
		return model.SignalKind(cleaned)
	default:
		return model.SignalWait
	}
}

func marketPrompt(md model.MarketData) string {
	return fmt.Sprintf(
		"Symbol: %s\nPrice: %s\nRSI14: %s\nMA7: %s MA25: %s MA99: %s\nATR14: %s\nVolumeRatio: %s\nMACD: line=%s signal=%s hist=%s\nSupport: %s Resistance: %s\n",
		md.Symbol,
		md.CurrentPrice.StringFixed(2),
		md.RSI14.StringFixed(2),
		md.MA7.StringFixed(2), md.MA25.StringFixed(2), md.MA99.StringFixed(2),
		md.ATR14.StringFixed(2),
		md.VolumeRatio.StringFixed(2),
		md.MACDLine.StringFixed(2), md.MACDSignal.StringFixed(2), md.MACDHist.StringFixed(2),
		md.Support.StringFixed(2), md.Resistance.StringFixed(2),
	)
}
