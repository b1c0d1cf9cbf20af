package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Call is one telephone call, created by the call-start webhook and
// finalized at session teardown.
type Call struct {
	bun.BaseModel `bun:"table:calls,alias:c"`

	ID             string     `bun:"id,pk" json:"id"`
	CallerNumber   string     `bun:"caller_number" json:"caller_number"`
	Status         string     `bun:"status" json:"status"`
	TranscriptFull string     `bun:"transcript_full" json:"transcript_full,omitempty"`
	StartTS        time.Time  `bun:"start_ts" json:"start_ts"`
	EndTS          *time.Time `bun:"end_ts,nullzero" json:"end_ts,omitempty"`
}

// TranscriptTurn is one persisted conversation turn.
type TranscriptTurn struct {
	bun.BaseModel `bun:"table:transcript_turns,alias:t"`

	ID        string    `bun:"id,pk" json:"id"`
	CallID    string    `bun:"call_id" json:"call_id"`
	Role      string    `bun:"role" json:"role"`
	Content   string    `bun:"content" json:"content"`
	Timestamp time.Time `bun:"timestamp" json:"timestamp"`
}

// AgentAction is the audit row recorded per agent execution.
type AgentAction struct {
	bun.BaseModel `bun:"table:agent_actions,alias:a"`

	ID         string         `bun:"id,pk" json:"id"`
	CallID     string         `bun:"call_id" json:"call_id"`
	ActionType string         `bun:"action_type" json:"action_type"`
	Params     map[string]any `bun:"params,type:jsonb" json:"params,omitempty"`
	Status     string         `bun:"status" json:"status"`
	Result     map[string]any `bun:"result,type:jsonb" json:"result,omitempty"`
	CreatedAt  time.Time      `bun:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `bun:"updated_at" json:"updated_at"`
}
