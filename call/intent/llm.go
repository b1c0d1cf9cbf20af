package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

const classifierSystemPrompt = `You classify one customer-support call transcript turn.
Respond with a single JSON object, nothing else:
{"intent": string, "confidence": number 0..1, "requires_agent": bool,
 "agent_type": "order_lookup"|"refund"|"cancel_order"|"tracking"|"complaint"|"",
 "entities": {string: string}, "should_cancel_agent": bool}
The caller speaks Hindi/Hinglish or English. Extract order numbers into
entities under "order_id". Set should_cancel_agent only when the caller
abandons the current request.`

type LLMConfig struct {
	APIKey      string  `split_words:"true" required:"true"`
	BaseURL     string  `split_words:"true"`
	Model       string  `split_words:"true" default:"gpt-4o-mini"`
	Temperature float64 `split_words:"true" default:"0"`
}

// LLMClassifier produces intent decisions from a chat-completions model.
// On any model or decode failure it falls back to the keyword rules so
// classification never takes a call down.
type LLMClassifier struct {
	client   openai.Client
	model    string
	fallback KeywordClassifier
}

func NewLLMClassifier(cfg LLMConfig) *LLMClassifier {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &LLMClassifier{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, transcript string, history []contractx.Turn) (contractx.IntentDecision, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierSystemPrompt),
			openai.UserMessage(classifierPayload(transcript, history)),
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("llm classification failed, falling back to keyword rules")
		return c.fallback.Classify(ctx, transcript, history)
	}
	if len(resp.Choices) == 0 {
		return c.fallback.Classify(ctx, transcript, history)
	}

	var decision contractx.IntentDecision
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.Trim(raw, "` \n")
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		log.Warn().Err(err).Msg("llm classification returned malformed JSON")
		return c.fallback.Classify(ctx, transcript, history)
	}
	return decision, nil
}

func classifierPayload(transcript string, history []contractx.Turn) string {
	var b strings.Builder
	// Only the recent turns matter for disambiguation.
	start := 0
	if len(history) > 6 {
		start = len(history) - 6
	}
	for _, turn := range history[start:] {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(&b, "current: %s", transcript)
	return b.String()
}
