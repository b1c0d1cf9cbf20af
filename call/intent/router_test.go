package intent

import (
	"testing"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

func TestRoutePriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		decision contractx.IntentDecision
		waiting  string
		want     Action
	}{
		{
			name: "explicit cancel wins over matching entity",
			decision: contractx.IntentDecision{
				ShouldCancelAgent: true,
				RequiresAgent:     true,
				AgentType:         contractx.AgentTypeOrderLookup,
				Entities:          map[string]string{"order_id": "123"},
			},
			waiting: "order_id",
			want:    ActionCancel,
		},
		{
			name:     "plain conversation needs no agent action",
			decision: contractx.IntentDecision{Intent: "general_chat"},
			want:     ActionNone,
		},
		{
			name: "awaited entity present updates existing agent",
			decision: contractx.IntentDecision{
				RequiresAgent: true,
				AgentType:     contractx.AgentTypeOrderLookup,
				Entities:      map[string]string{"order_id": "123"},
			},
			waiting: "order_id",
			want:    ActionUpdate,
		},
		{
			name: "waiting but awaited entity absent falls through to launch",
			decision: contractx.IntentDecision{
				RequiresAgent: true,
				AgentType:     contractx.AgentTypeRefund,
				Entities:      map[string]string{"pincode": "560001"},
			},
			waiting: "order_id",
			want:    ActionLaunch,
		},
		{
			name: "awaited entity empty string does not count",
			decision: contractx.IntentDecision{
				RequiresAgent: true,
				AgentType:     contractx.AgentTypeOrderLookup,
				Entities:      map[string]string{"order_id": ""},
			},
			waiting: "order_id",
			want:    ActionLaunch,
		},
		{
			name: "not waiting launches new agent",
			decision: contractx.IntentDecision{
				RequiresAgent: true,
				AgentType:     contractx.AgentTypeOrderLookup,
			},
			want: ActionLaunch,
		},
		{
			name: "cancel without agent fields still cancels",
			decision: contractx.IntentDecision{
				ShouldCancelAgent: true,
			},
			want: ActionCancel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.decision, tt.waiting); got != tt.want {
				t.Fatalf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}
