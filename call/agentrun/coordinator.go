// Package agentrun owns the lifecycle of agent instances: at most one
// non-terminal instance per call, launched when an agent-triggering
// intent is detected, fed awaited entities while blocked, and torn down
// on completion, failure, or cancellation.
package agentrun

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// HandlerFactory builds a fresh handler for each launch, bound to the
// launching call, so instance state never leaks between calls.
type HandlerFactory func(callID string) contractx.AgentHandler

// Coordinator drives the agent state machine for every active call.
//
// Lifecycle events are delivered to the per-call sink registered at
// launch; the coordinator never fans events out across calls.
type Coordinator struct {
	mu       sync.Mutex
	handlers map[contractx.AgentType]HandlerFactory
	active   map[string]*instance
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		handlers: make(map[contractx.AgentType]HandlerFactory),
		active:   make(map[string]*instance),
	}
}

// Register binds an agent type to its handler factory. Later
// registrations for the same type replace earlier ones.
func (c *Coordinator) Register(agentType contractx.AgentType, factory HandlerFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[agentType] = factory
}

// Launch creates an agent instance for the call and evaluates readiness.
// If required fields are missing it stays WAITING_FOR_INFO and emits a
// needs-info event for the first missing field; otherwise it transitions
// to RUNNING and invokes the handler on its own goroutine.
func (c *Coordinator) Launch(callID string, agentType contractx.AgentType, entities map[string]string, sink contractx.AgentEvents) error {
	c.mu.Lock()
	factory, ok := c.handlers[agentType]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", contractx.ErrUnknownAgentType, agentType)
	}
	if cur, exists := c.active[callID]; exists && !cur.state.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s has active %s", contractx.ErrAgentAlreadyActive, callID, cur.agentType)
	}

	inst := newInstance(callID, agentType, factory(callID), entities, sink)
	c.active[callID] = inst

	field, missing := inst.firstMissing()
	if missing {
		inst.state = contractx.AgentWaitingForInfo
		prompt := inst.handler.PromptForField(field)
		c.mu.Unlock()

		log.Info().Str("call_id", callID).Str("agent_type", string(agentType)).
			Str("field", field).Msg("agent waiting for info")
		sink.AgentNeedsInfo(callID, agentType, field, prompt)
		return nil
	}

	inst.state = contractx.AgentRunning
	c.mu.Unlock()

	log.Info().Str("call_id", callID).Str("agent_type", string(agentType)).Msg("agent running")
	go c.run(inst)
	return nil
}

// Update merges newly extracted entities into a WAITING_FOR_INFO
// instance and re-evaluates readiness. It is a no-op, not an error, when
// the call has no active instance or the instance is past waiting.
func (c *Coordinator) Update(callID string, entities map[string]string) {
	c.mu.Lock()
	inst, ok := c.active[callID]
	if !ok || inst.state != contractx.AgentWaitingForInfo {
		c.mu.Unlock()
		return
	}

	inst.merge(entities)

	field, missing := inst.firstMissing()
	if missing {
		prompt := inst.handler.PromptForField(field)
		sink := inst.sink
		agentType := inst.agentType
		c.mu.Unlock()

		sink.AgentNeedsInfo(callID, agentType, field, prompt)
		return
	}

	inst.state = contractx.AgentRunning
	c.mu.Unlock()

	log.Info().Str("call_id", callID).Str("agent_type", string(inst.agentType)).Msg("agent running")
	go c.run(inst)
}

// Cancel transitions the call's active instance to CANCELLED and
// detaches it. Safe when no instance is active, when the instance is
// already terminal, and concurrently with an in-flight handler; a
// cancelled handler's eventual return is ignored.
func (c *Coordinator) Cancel(callID string) {
	c.mu.Lock()
	inst, ok := c.active[callID]
	if !ok || inst.state.Terminal() {
		c.mu.Unlock()
		return
	}
	inst.state = contractx.AgentCancelled
	delete(c.active, callID)
	inst.cancel()
	sink := inst.sink
	agentType := inst.agentType
	c.mu.Unlock()

	log.Info().Str("call_id", callID).Str("agent_type", string(agentType)).Msg("agent cancelled")
	sink.AgentCancelled(callID, agentType)
}

// Active reports the call's current non-terminal instance state, for
// introspection.
func (c *Coordinator) Active(callID string) (contractx.AgentType, contractx.AgentState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.active[callID]
	if !ok {
		return "", "", false
	}
	return inst.agentType, inst.state, true
}

func (c *Coordinator) run(inst *instance) {
	result, err := inst.handler.Execute(inst.ctx, inst.dataCopy())

	c.mu.Lock()
	cur, ok := c.active[inst.callID]
	if !ok || cur.id != inst.id {
		// A cancel or relaunch got there first; this completion is stale.
		c.mu.Unlock()
		log.Debug().Str("call_id", inst.callID).Str("agent_type", string(inst.agentType)).
			Msg("ignoring stale agent completion")
		return
	}
	if err != nil {
		cur.state = contractx.AgentFailed
	} else {
		cur.state = contractx.AgentCompleted
	}
	delete(c.active, inst.callID)
	c.mu.Unlock()
	inst.cancel()

	if err != nil {
		log.Error().Err(err).Str("call_id", inst.callID).
			Str("agent_type", string(inst.agentType)).Msg("agent execution failed")
		inst.sink.AgentError(inst.callID, inst.agentType, err)
		return
	}

	log.Info().Str("call_id", inst.callID).Str("agent_type", string(inst.agentType)).
		Bool("success", result.Success).Msg("agent completed")
	inst.sink.AgentCompleted(inst.callID, inst.agentType, result)
}
