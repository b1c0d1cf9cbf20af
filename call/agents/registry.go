package agents

import (
	agentrunx "github.com/calyhq/caly-voice-agent/call/agentrun"
	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// RegisterAll installs every shipped agent handler into the coordinator.
func RegisterAll(coord *agentrunx.Coordinator, commerce CommerceAPI, actions contractx.ActionStore) {
	coord.Register(contractx.AgentTypeOrderLookup, func(callID string) contractx.AgentHandler {
		return NewOrderLookup(callID, commerce, actions)
	})
	coord.Register(contractx.AgentTypeRefund, func(string) contractx.AgentHandler {
		return NewRefund()
	})
	coord.Register(contractx.AgentTypeCancelOrder, func(string) contractx.AgentHandler {
		return NewCancelOrder()
	})
	coord.Register(contractx.AgentTypeTracking, func(string) contractx.AgentHandler {
		return NewTracking()
	})
	coord.Register(contractx.AgentTypeComplaint, func(string) contractx.AgentHandler {
		return NewComplaint()
	})
}
