package transport

import (
	"context"
	"log/slog"
)

// SlogTransport logs notifications instead of delivering them. It is the
// default for local development, where agents poll the API rather than
// listen on a queue.
type SlogTransport struct {
	logger *slog.Logger
}

// NewSlogTransport creates a logging transport.
func NewSlogTransport(logger *slog.Logger) *SlogTransport {
	return &SlogTransport{
		logger: logger.With("module", "slog_transport"),
	}
}

func (t *SlogTransport) Send(ctx context.Context, agentID string, notification Notification) error {
	t.logger.InfoContext(ctx, "Agent notified",
		"agent_id", agentID,
		"contract_id", notification.ContractID,
		"assignment_id", notification.AssignmentID,
		"strategy", notification.Strategy,
	)

	return nil
}

func (t *SlogTransport) Close(_ context.Context) error {
	return nil
}

var _ Transport = (*SlogTransport)(nil)
