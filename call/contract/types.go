package contract

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a call's conversation history. History is
// append-only and insertion order is the conversation order.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentType names a registered agent handler implementation.
type AgentType string

const (
	AgentTypeOrderLookup AgentType = "order_lookup"
	AgentTypeRefund      AgentType = "refund"
	AgentTypeCancelOrder AgentType = "cancel_order"
	AgentTypeTracking    AgentType = "tracking"
	AgentTypeComplaint   AgentType = "complaint"
)

// AgentState is the lifecycle state of a launched agent instance.
type AgentState string

const (
	AgentWaitingForInfo AgentState = "WAITING_FOR_INFO"
	AgentRunning        AgentState = "RUNNING"
	AgentCompleted      AgentState = "COMPLETED"
	AgentFailed         AgentState = "FAILED"
	AgentCancelled      AgentState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s AgentState) Terminal() bool {
	switch s {
	case AgentCompleted, AgentFailed, AgentCancelled:
		return true
	}
	return false
}

// IntentDecision is the transient record produced by the classifier for
// one completed user transcript.
type IntentDecision struct {
	Intent            string            `json:"intent"`
	Confidence        float64           `json:"confidence"`
	RequiresAgent     bool              `json:"requires_agent"`
	AgentType         AgentType         `json:"agent_type,omitempty"`
	Entities          map[string]string `json:"entities,omitempty"`
	ShouldCancelAgent bool              `json:"should_cancel_agent"`
}

// AgentResult is what an agent handler produces on success. ContextUpdate
// is the text injected into the live speech session to steer its next
// spoken response.
type AgentResult struct {
	Success       bool           `json:"success"`
	ContextUpdate string         `json:"context_update"`
	Data          map[string]any `json:"data,omitempty"`
}

// SpeechEventType discriminates events emitted by a speech session.
type SpeechEventType string

const (
	SpeechStarted             SpeechEventType = "speech_started"
	SpeechStopped             SpeechEventType = "speech_stopped"
	UserTranscriptCompleted   SpeechEventType = "user_transcript_completed"
	AssistTranscriptCompleted SpeechEventType = "ai_transcript_completed"
	AudioOutput               SpeechEventType = "audio_output"
	SpeechError               SpeechEventType = "error"
)

// SpeechEvent is one event read from the live speech channel. Only the
// fields relevant to Type are populated.
type SpeechEvent struct {
	Type       SpeechEventType
	Transcript string
	Audio      []byte
	Err        error
}
