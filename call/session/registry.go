package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// AgentCoordinator is the slice of the lifecycle coordinator the session
// layer drives.
type AgentCoordinator interface {
	Launch(callID string, agentType contractx.AgentType, entities map[string]string, sink contractx.AgentEvents) error
	Update(callID string, entities map[string]string)
	Cancel(callID string)
}

// Deps are the collaborators shared by every call session.
type Deps struct {
	SpeechFactory contractx.SpeechSessionFactory
	Classifier    contractx.Classifier
	Coordinator   AgentCoordinator

	// Optional. Persistence failures are logged and swallowed.
	Transcripts contractx.TranscriptStore

	// Optional. Invoked on speech-channel errors; policy above the core
	// decides whether to terminate the call.
	OnSessionError func(callID string, err error)
}

// Registry is the process-wide map of live call sessions. A callId maps
// to at most one session at any time; lookups never block on another
// session's work.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*CallSession
	reserved map[string]struct{}
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.SpeechFactory == nil {
		return nil, fmt.Errorf("speech session factory is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("agent coordinator is required")
	}
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*CallSession),
		reserved: make(map[string]struct{}),
	}, nil
}

// Create builds a session for the call, starts its speech channel, and
// registers it. The id is reserved before the blocking start so a
// concurrent Create for the same call fails with ErrDuplicateSession;
// a failed start leaves no entry behind.
func (r *Registry) Create(ctx context.Context, callID string, data CallData, outbound OutboundAudioFunc) (*CallSession, error) {
	r.mu.Lock()
	if _, ok := r.sessions[callID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", contractx.ErrDuplicateSession, callID)
	}
	if _, ok := r.reserved[callID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", contractx.ErrDuplicateSession, callID)
	}
	r.reserved[callID] = struct{}{}
	r.mu.Unlock()

	log.Info().Str("call_id", callID).Msg("creating call session")

	speech := r.deps.SpeechFactory()
	s := newCallSession(callID, data, speech, outbound, r.deps)

	if err := speech.Start(ctx, callID); err != nil {
		r.mu.Lock()
		delete(r.reserved, callID)
		r.mu.Unlock()
		log.Error().Err(err).Str("call_id", callID).Msg("speech session start failed")
		return nil, fmt.Errorf("start speech session for %s: %w", callID, err)
	}

	s.start()

	r.mu.Lock()
	delete(r.reserved, callID)
	r.sessions[callID] = s
	r.mu.Unlock()

	log.Info().Str("call_id", callID).Msg("call session created")
	return s, nil
}

// Get never blocks and never errs on absence.
func (r *Registry) Get(callID string) (*CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// ProcessIncomingAudio relays one transport audio chunk to the call's
// speech channel. Chunks for unknown or inactive calls are dropped.
func (r *Registry) ProcessIncomingAudio(callID string, chunk []byte) {
	s, ok := r.Get(callID)
	if !ok {
		log.Debug().Str("call_id", callID).Msg("audio for unknown call dropped")
		return
	}
	s.relay.ForwardInbound(chunk)
}

// Destroy tears the session down: it gates further event processing,
// cancels any active agent, stops the speech channel, writes the final
// transcript, and removes the entry. Idempotent, and safe to race with
// in-flight event handlers for the same call.
func (r *Registry) Destroy(ctx context.Context, callID string) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	if !ok {
		r.mu.Unlock()
		log.Warn().Str("call_id", callID).Msg("destroy for unknown call")
		return
	}
	delete(r.sessions, callID)
	r.mu.Unlock()

	log.Info().Str("call_id", callID).Msg("ending call session")

	// Gate first so racing handlers observe the inactive call and no-op.
	s.active.Store(false)

	r.deps.Coordinator.Cancel(callID)

	if err := s.speech.Stop(ctx); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("could not stop speech session")
	}

	s.shutdown(ctx)

	if r.deps.Transcripts != nil {
		if err := r.deps.Transcripts.FinishCall(ctx, callID, renderTranscript(s.History())); err != nil {
			log.Error().Err(err).Str("call_id", callID).Msg("could not save final transcript")
		}
	}

	log.Info().Str("call_id", callID).
		Dur("duration", time.Since(s.startTime)).
		Msg("call session ended")
}

// ActiveCallIDs lists the calls currently registered.
func (r *Registry) ActiveCallIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func renderTranscript(history []contractx.Turn) string {
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}
	return b.String()
}
