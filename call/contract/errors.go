package contract

import "errors"

var (
	ErrDuplicateSession   = errors.New("session already exists for call")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownAgentType   = errors.New("unknown agent type")
	ErrAgentAlreadyActive = errors.New("agent already active for call")
)
