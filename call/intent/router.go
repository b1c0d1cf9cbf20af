// Package intent wraps transcript classification and the policy that
// maps a classification to an agent action.
package intent

import (
	contractx "github.com/calyhq/caly-voice-agent/call/contract"
)

// Action is what a classified transcript should do to the call's agent.
type Action int

const (
	// ActionNone leaves the agent alone; the transcript was ordinary
	// conversation handled by the speech channel itself.
	ActionNone Action = iota
	// ActionCancel cancels the active agent, if any.
	ActionCancel
	// ActionUpdate feeds the decision's entities to the waiting agent.
	ActionUpdate
	// ActionLaunch starts a new agent of the decision's type.
	ActionLaunch
)

// Route applies the routing policy, in priority order:
//
//  1. an explicit cancel always wins, regardless of other fields;
//  2. no agent required means no agent action;
//  3. if the session awaits an entity and the decision carries exactly
//     that field, the existing agent is updated, never replaced;
//  4. otherwise a new launch.
//
// Rule 3 outranking rule 4 prevents a half-answered agent from being
// silently replaced by a new one.
func Route(decision contractx.IntentDecision, waitingForEntity string) Action {
	if decision.ShouldCancelAgent {
		return ActionCancel
	}
	if !decision.RequiresAgent {
		return ActionNone
	}
	if waitingForEntity != "" {
		if v, ok := decision.Entities[waitingForEntity]; ok && v != "" {
			return ActionUpdate
		}
	}
	return ActionLaunch
}
