package intent

import (
	"context"
	"testing"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name          string
		transcript    string
		wantIntent    string
		wantAgent     contractx.AgentType
		wantRequires  bool
		wantCancel    bool
		wantOrderID   string
	}{
		{
			name:         "order status in hinglish",
			transcript:   "mera order kahan hai",
			wantIntent:   "order_status",
			wantAgent:    contractx.AgentTypeOrderLookup,
			wantRequires: true,
		},
		{
			name:         "order status with inline id",
			transcript:   "order status check karo 45678",
			wantIntent:   "order_status",
			wantAgent:    contractx.AgentTypeOrderLookup,
			wantRequires: true,
			wantOrderID:  "45678",
		},
		{
			name:       "cancellation phrase",
			transcript: "cancel karo yaar",
			wantIntent: "cancel_action",
			wantCancel: true,
		},
		{
			name:         "cancel order is an agent intent not a cancel",
			transcript:   "mujhe order cancel karna hai",
			wantIntent:   "cancel_order",
			wantAgent:    contractx.AgentTypeCancelOrder,
			wantRequires: true,
		},
		{
			name:         "refund request",
			transcript:   "paise wapas chahiye",
			wantIntent:   "refund_request",
			wantAgent:    contractx.AgentTypeRefund,
			wantRequires: true,
		},
		{
			name:         "tracking question",
			transcript:   "package kab aayega",
			wantIntent:   "tracking",
			wantAgent:    contractx.AgentTypeTracking,
			wantRequires: true,
		},
		{
			name:         "complaint",
			transcript:   "product kharab nikla",
			wantIntent:   "complaint",
			wantAgent:    contractx.AgentTypeComplaint,
			wantRequires: true,
		},
		{
			name:         "bare order number",
			transcript:   "12345",
			wantIntent:   "provide_info",
			wantAgent:    contractx.AgentTypeOrderLookup,
			wantRequires: true,
			wantOrderID:  "12345",
		},
		{
			name:       "small talk",
			transcript: "hello kaise ho",
			wantIntent: "general_chat",
		},
	}

	clf := KeywordClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := clf.Classify(context.Background(), tt.transcript, nil)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if decision.Intent != tt.wantIntent {
				t.Fatalf("intent = %q, want %q", decision.Intent, tt.wantIntent)
			}
			if decision.RequiresAgent != tt.wantRequires {
				t.Fatalf("requiresAgent = %v, want %v", decision.RequiresAgent, tt.wantRequires)
			}
			if decision.ShouldCancelAgent != tt.wantCancel {
				t.Fatalf("shouldCancelAgent = %v, want %v", decision.ShouldCancelAgent, tt.wantCancel)
			}
			if tt.wantRequires && decision.AgentType != tt.wantAgent {
				t.Fatalf("agentType = %q, want %q", decision.AgentType, tt.wantAgent)
			}
			if tt.wantOrderID != "" && decision.Entities["order_id"] != tt.wantOrderID {
				t.Fatalf("order_id = %q, want %q", decision.Entities["order_id"], tt.wantOrderID)
			}
		})
	}
}
