// Package session owns the per-call orchestration aggregate: one
// CallSession per live telephone call, a concurrency-safe registry of
// them, and the audio relay binding a call to its transport.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
	intentx "github.com/calyhq/caly-voice-agent/call/intent"
)

// CallData is the transport-provided metadata for a call.
type CallData struct {
	CallerNumber string
}

// CallSession orchestrates one live call. All state mutations run on a
// single event loop goroutine, so speech events, agent lifecycle events,
// and audio for one call are processed as a serialized sequence while
// different calls proceed fully in parallel.
type CallSession struct {
	callID    string
	data      CallData
	speech    contractx.SpeechSession
	relay     *AudioRelay
	deps      Deps
	startTime time.Time

	active atomic.Bool
	events chan any
	done   chan struct{}

	// Mutated only by the event loop goroutine; the lock exists for
	// read-side accessors.
	mu               sync.RWMutex
	history          []contractx.Turn
	currentIntent    string
	waitingForEntity string
}

type (
	speechEvt         struct{ evt contractx.SpeechEvent }
	agentNeedsInfoEvt struct {
		agentType contractx.AgentType
		field     string
		prompt    string
	}
	agentCompletedEvt struct {
		agentType contractx.AgentType
		result    contractx.AgentResult
	}
	agentErrorEvt struct {
		agentType contractx.AgentType
		err       error
	}
	agentCancelledEvt struct{ agentType contractx.AgentType }
	shutdownEvt       struct{}
)

func newCallSession(callID string, data CallData, speech contractx.SpeechSession, outbound OutboundAudioFunc, deps Deps) *CallSession {
	s := &CallSession{
		callID:    callID,
		data:      data,
		speech:    speech,
		deps:      deps,
		startTime: time.Now(),
		events:    make(chan any, 256),
		done:      make(chan struct{}),
	}
	s.relay = newAudioRelay(callID, speech, &s.active, outbound)
	s.active.Store(true)
	return s
}

// start launches the event loop and the pump that drains the speech
// channel into it.
func (s *CallSession) start() {
	go s.loop()
	go s.pumpSpeech()
}

func (s *CallSession) pumpSpeech() {
	for evt := range s.speech.Events() {
		s.enqueue(speechEvt{evt: evt})
	}
}

// enqueue never blocks the caller: events for an inactive call are
// dropped, and a full queue drops rather than stalling the speech
// channel or an agent goroutine.
func (s *CallSession) enqueue(evt any) {
	if _, isShutdown := evt.(shutdownEvt); !isShutdown && !s.active.Load() {
		return
	}
	select {
	case s.events <- evt:
	default:
		log.Warn().Str("call_id", s.callID).Msgf("session queue full; dropping %T", evt)
	}
}

func (s *CallSession) loop() {
	defer close(s.done)
	for evt := range s.events {
		switch e := evt.(type) {
		case speechEvt:
			s.handleSpeech(e.evt)
		case agentNeedsInfoEvt:
			s.handleAgentNeedsInfo(e)
		case agentCompletedEvt:
			s.handleAgentCompleted(e)
		case agentErrorEvt:
			s.handleAgentError(e)
		case agentCancelledEvt:
			s.handleAgentCancelled(e)
		case shutdownEvt:
			return
		default:
			log.Warn().Str("call_id", s.callID).Msgf("unknown session event %T", evt)
		}
	}
}

func (s *CallSession) handleSpeech(evt contractx.SpeechEvent) {
	if !s.active.Load() {
		return
	}
	switch evt.Type {
	case contractx.SpeechStarted:
		log.Debug().Str("call_id", s.callID).Msg("user speech started")
	case contractx.SpeechStopped:
		log.Debug().Str("call_id", s.callID).Msg("user speech stopped")
	case contractx.UserTranscriptCompleted:
		s.handleUserTranscript(evt.Transcript)
	case contractx.AssistTranscriptCompleted:
		s.appendTurn(contractx.RoleAssistant, evt.Transcript)
	case contractx.AudioOutput:
		s.relay.ForwardOutbound(evt.Audio)
	case contractx.SpeechError:
		log.Error().Err(evt.Err).Str("call_id", s.callID).Msg("speech channel error")
		if s.deps.OnSessionError != nil {
			s.deps.OnSessionError(s.callID, evt.Err)
		}
	}
}

func (s *CallSession) handleUserTranscript(transcript string) {
	log.Info().Str("call_id", s.callID).Str("transcript", transcript).Msg("user said")
	s.appendTurn(contractx.RoleUser, transcript)

	decision, err := s.deps.Classifier.Classify(context.Background(), transcript, s.History())
	if err != nil {
		log.Error().Err(err).Str("call_id", s.callID).Msg("intent classification failed")
		return
	}

	log.Info().Str("call_id", s.callID).
		Str("intent", decision.Intent).
		Float64("confidence", decision.Confidence).
		Bool("requires_agent", decision.RequiresAgent).
		Msg("intent detected")

	switch intentx.Route(decision, s.Waiting()) {
	case intentx.ActionCancel:
		s.deps.Coordinator.Cancel(s.callID)
		s.clearAgentState()
		s.updateSpeechContext(`SYSTEM: User cancelled the action. Acknowledge politely: "Ji sir, koi baat nahi. Kuch aur batayiye?"`)
	case intentx.ActionNone:
		// Ordinary conversation; the speech channel answers on its own.
	case intentx.ActionUpdate:
		s.deps.Coordinator.Update(s.callID, decision.Entities)
		s.setWaiting("")
	case intentx.ActionLaunch:
		s.setIntent(decision.Intent)
		if err := s.deps.Coordinator.Launch(s.callID, decision.AgentType, decision.Entities, s); err != nil {
			log.Error().Err(err).Str("call_id", s.callID).Msg("could not launch agent")
			s.setIntent("")
			s.updateSpeechContext(`SYSTEM: Could not process request. Apologize: "Maaf kijiye, thodi problem aa rahi hai. Kuch aur madad kar sakti hoon?"`)
		}
	}
}

func (s *CallSession) handleAgentNeedsInfo(e agentNeedsInfoEvt) {
	if !s.active.Load() {
		return
	}
	log.Info().Str("call_id", s.callID).Str("field", e.field).Msg("agent needs info")
	s.setWaiting(e.field)
	s.updateSpeechContext("SYSTEM: " + e.prompt + ". Ask user naturally for this information in Hindi.")
}

func (s *CallSession) handleAgentCompleted(e agentCompletedEvt) {
	if !s.active.Load() {
		return
	}
	log.Info().Str("call_id", s.callID).Str("agent_type", string(e.agentType)).
		Bool("success", e.result.Success).Msg("agent completed")
	s.clearAgentState()
	s.updateSpeechContext("SYSTEM: " + e.result.ContextUpdate)
}

func (s *CallSession) handleAgentError(e agentErrorEvt) {
	if !s.active.Load() {
		return
	}
	log.Error().Err(e.err).Str("call_id", s.callID).Str("agent_type", string(e.agentType)).Msg("agent error")
	// The instance is detached on error, so waiting state must not linger.
	s.clearAgentState()
	s.updateSpeechContext(`SYSTEM: Technical issue occurred. Apologize to user and offer to create a support ticket. Say in Hindi: "Maaf kijiye sir, thoda technical issue aa raha hai. Main aapka ticket create kar deti hoon, team 24 ghante mein contact karegi."`)
}

func (s *CallSession) handleAgentCancelled(e agentCancelledEvt) {
	log.Info().Str("call_id", s.callID).Str("agent_type", string(e.agentType)).Msg("agent cancelled")
	s.clearAgentState()
}

func (s *CallSession) appendTurn(role contractx.Role, content string) {
	s.mu.Lock()
	s.history = append(s.history, contractx.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()
	if s.deps.Transcripts != nil {
		if err := s.deps.Transcripts.AppendTranscript(context.Background(), s.callID, role, content); err != nil {
			log.Error().Err(err).Str("call_id", s.callID).Msg("could not save transcript turn")
		}
	}
}

func (s *CallSession) updateSpeechContext(text string) {
	if err := s.speech.UpdateContext(text); err != nil {
		log.Error().Err(err).Str("call_id", s.callID).Msg("could not update speech context")
	}
}

// AgentNeedsInfo implements contract.AgentEvents.
func (s *CallSession) AgentNeedsInfo(callID string, agentType contractx.AgentType, field, prompt string) {
	s.enqueue(agentNeedsInfoEvt{agentType: agentType, field: field, prompt: prompt})
}

// AgentCompleted implements contract.AgentEvents.
func (s *CallSession) AgentCompleted(callID string, agentType contractx.AgentType, result contractx.AgentResult) {
	s.enqueue(agentCompletedEvt{agentType: agentType, result: result})
}

// AgentError implements contract.AgentEvents.
func (s *CallSession) AgentError(callID string, agentType contractx.AgentType, err error) {
	s.enqueue(agentErrorEvt{agentType: agentType, err: err})
}

// AgentCancelled implements contract.AgentEvents.
func (s *CallSession) AgentCancelled(callID string, agentType contractx.AgentType) {
	s.enqueue(agentCancelledEvt{agentType: agentType})
}

// CallID returns the call identifier.
func (s *CallSession) CallID() string { return s.callID }

// Active reports whether teardown has begun.
func (s *CallSession) Active() bool { return s.active.Load() }

// History returns a copy of the conversation so far.
func (s *CallSession) History() []contractx.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contractx.Turn(nil), s.history...)
}

// Waiting reports the entity field the active agent is blocked on.
func (s *CallSession) Waiting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waitingForEntity
}

// CurrentIntent reports the intent driving the active agent.
func (s *CallSession) CurrentIntent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIntent
}

func (s *CallSession) setIntent(intent string) {
	s.mu.Lock()
	s.currentIntent = intent
	s.mu.Unlock()
}

func (s *CallSession) setWaiting(field string) {
	s.mu.Lock()
	s.waitingForEntity = field
	s.mu.Unlock()
}

func (s *CallSession) clearAgentState() {
	s.mu.Lock()
	s.currentIntent = ""
	s.waitingForEntity = ""
	s.mu.Unlock()
}

func (s *CallSession) shutdown(ctx context.Context) {
	select {
	case s.events <- shutdownEvt{}:
	case <-s.done:
		return
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}
