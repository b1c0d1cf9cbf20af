package agentrun

import (
	"context"

	"github.com/google/uuid"

	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// instance is one launched agent. Its id is the identity used to
// suppress stale completions: a callback only transitions the instance it
// was spawned for, never a later instance launched for the same call.
type instance struct {
	id        string
	callID    string
	agentType contractx.AgentType
	handler   contractx.AgentHandler
	required  []string
	data      map[string]string
	state     contractx.AgentState
	sink      contractx.AgentEvents

	ctx    context.Context
	cancel context.CancelFunc
}

func newInstance(callID string, agentType contractx.AgentType, handler contractx.AgentHandler, entities map[string]string, sink contractx.AgentEvents) *instance {
	ctx, cancel := context.WithCancel(context.Background())
	data := make(map[string]string, len(entities))
	for k, v := range entities {
		data[k] = v
	}
	return &instance{
		id:        uuid.NewString(),
		callID:    callID,
		agentType: agentType,
		handler:   handler,
		required:  handler.RequiredFields(),
		data:      data,
		sink:      sink,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// firstMissing returns the first required field absent from data, in
// declaration order, so the prompt sequence is deterministic.
func (in *instance) firstMissing() (string, bool) {
	for _, field := range in.required {
		if v, ok := in.data[field]; !ok || v == "" {
			return field, true
		}
	}
	return "", false
}

func (in *instance) merge(entities map[string]string) {
	for k, v := range entities {
		if v == "" {
			continue
		}
		in.data[k] = v
	}
}

func (in *instance) dataCopy() map[string]string {
	cp := make(map[string]string, len(in.data))
	for k, v := range in.data {
		cp[k] = v
	}
	return cp
}
