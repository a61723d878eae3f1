// Package transport delivers assignment notifications to agents.
package transport

import "context"

// Notification is the message pushed to an agent when work is handed to it.
type Notification struct {
	ContractID   string `json:"contract_id"`
	AssignmentID string `json:"assignment_id"`
	Title        string `json:"title"`
	Strategy     string `json:"strategy"`
	Timestamp    string `json:"timestamp"`
}

// Transport pushes a notification to a single agent. Implementations must
// be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, agentID string, notification Notification) error
	Close(ctx context.Context) error
}
