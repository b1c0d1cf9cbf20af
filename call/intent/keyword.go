package intent

import (
	"context"
	"regexp"
	"strings"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// KeywordClassifier is the default rule-based classifier. It matches
// Hindi/Hinglish and English support phrases and extracts order ids. It
// never errs, so a call can always fall back to plain conversation.
type KeywordClassifier struct{}

var orderIDPattern = regexp.MustCompile(`\b\d{3,}\b`)

var cancelPhrases = []string{
	"cancel karo",
	"rehne do",
	"rahne do",
	"mat karo",
	"nahi chahiye",
	"chhod do",
	"leave it",
	"never mind",
}

var intentRules = []struct {
	intent    string
	agentType contractx.AgentType
	phrases   []string
}{
	{
		intent:    "cancel_order",
		agentType: contractx.AgentTypeCancelOrder,
		phrases:   []string{"order cancel", "cancel my order", "cancel order"},
	},
	{
		intent:    "refund_request",
		agentType: contractx.AgentTypeRefund,
		phrases:   []string{"refund", "paise wapas", "paisa wapas", "money back"},
	},
	{
		intent:    "order_status",
		agentType: contractx.AgentTypeOrderLookup,
		phrases:   []string{"order kahan", "order kaha", "order status", "mera order", "my order", "order check"},
	},
	{
		intent:    "tracking",
		agentType: contractx.AgentTypeTracking,
		phrases:   []string{"kab aayega", "kab ayega", "tracking", "kab milega", "delivery kab"},
	},
	{
		intent:    "complaint",
		agentType: contractx.AgentTypeComplaint,
		phrases:   []string{"complaint", "shikayat", "kharab", "damaged", "defective", "galat product"},
	},
}

func (KeywordClassifier) Classify(_ context.Context, transcript string, _ []contractx.Turn) (contractx.IntentDecision, error) {
	text := strings.ToLower(strings.TrimSpace(transcript))

	entities := map[string]string{}
	if id := orderIDPattern.FindString(text); id != "" {
		entities["order_id"] = id
	}

	for _, phrase := range cancelPhrases {
		if strings.Contains(text, phrase) {
			return contractx.IntentDecision{
				Intent:            "cancel_action",
				Confidence:        0.9,
				ShouldCancelAgent: true,
				Entities:          entities,
			}, nil
		}
	}

	for _, rule := range intentRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				return contractx.IntentDecision{
					Intent:        rule.intent,
					Confidence:    0.8,
					RequiresAgent: true,
					AgentType:     rule.agentType,
					Entities:      entities,
				}, nil
			}
		}
	}

	// A bare order number mid-conversation is treated as information for
	// whichever agent is waiting; without one it seeds an order lookup.
	if len(entities) > 0 && isMostlyNumeric(text) {
		return contractx.IntentDecision{
			Intent:        "provide_info",
			Confidence:    0.7,
			RequiresAgent: true,
			AgentType:     contractx.AgentTypeOrderLookup,
			Entities:      entities,
		}, nil
	}

	return contractx.IntentDecision{
		Intent:     "general_chat",
		Confidence: 0.5,
		Entities:   entities,
	}, nil
}

func isMostlyNumeric(text string) bool {
	var digits, letters int
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return digits > 0 && letters <= 4
}
