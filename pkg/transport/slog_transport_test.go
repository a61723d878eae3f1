package transport

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogTransport_Send(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tr := NewSlogTransport(logger)

	err := tr.Send(context.Background(), "w1", Notification{
		ContractID:   "contract-1",
		AssignmentID: "assignment-1",
		Title:        "Run tests",
		Strategy:     "auto",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "agent_id=w1")
	assert.Contains(t, out, "contract_id=contract-1")

	assert.NoError(t, tr.Close(context.Background()))
}
