package contract

import "context"

// SpeechSession is the live, per-call bidirectional speech channel. One
// instance is bound to exactly one call for the call's whole lifetime.
// Implementations own their upstream connection; the orchestration core
// treats the channel as an opaque event source plus command sink.
type SpeechSession interface {
	Start(ctx context.Context, callID string) error
	Stop(ctx context.Context) error
	SendAudio(chunk []byte) error
	UpdateContext(text string) error

	// Events is the read side of the channel. It is closed after Stop
	// returns; no events are delivered for a stopped session.
	Events() <-chan SpeechEvent
}

// SpeechSessionFactory builds a fresh speech session for a new call.
type SpeechSessionFactory func() SpeechSession

// Classifier maps a completed user transcript plus the conversation so
// far to an intent decision. Implementations must be side-effect free.
type Classifier interface {
	Classify(ctx context.Context, transcript string, history []Turn) (IntentDecision, error)
}

// AgentHandler is the capability contract a concrete agent implements.
// RequiredFields declares, in prompting order, the entity fields that
// must be present in data before Execute is invoked.
type AgentHandler interface {
	RequiredFields() []string
	PromptForField(field string) string
	Execute(ctx context.Context, data map[string]string) (AgentResult, error)
}

// AgentEvents receives lifecycle events for one call. The coordinator
// delivers every event for a call to the sink registered at launch, so
// sinks never observe another call's lifecycle.
type AgentEvents interface {
	AgentNeedsInfo(callID string, agentType AgentType, field, prompt string)
	AgentCompleted(callID string, agentType AgentType, result AgentResult)
	AgentError(callID string, agentType AgentType, err error)
	AgentCancelled(callID string, agentType AgentType)
}

// TranscriptStore is the persistence surface the core writes through.
// Both operations may fail without aborting the conversation.
type TranscriptStore interface {
	AppendTranscript(ctx context.Context, callID string, role Role, content string) error
	FinishCall(ctx context.Context, callID, fullTranscript string) error
}

// ActionStore records agent executions for auditing. Failures are logged
// and swallowed by callers.
type ActionStore interface {
	CreateAction(ctx context.Context, callID string, actionType string, params map[string]any) (string, error)
	UpdateActionStatus(ctx context.Context, actionID, status string, result map[string]any) error
}
