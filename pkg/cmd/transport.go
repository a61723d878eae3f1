package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hiveplane/hiveplane/pkg/config"
	"github.com/hiveplane/hiveplane/pkg/transport"
)

// NewTransport creates the agent notification transport named by the
// configuration.
func NewTransport(ctx context.Context, logger *slog.Logger, cfg config.TransportConfig) transport.Transport {
	switch cfg.Provider {
	case "redis":
		tr, err := transport.NewRedisTransport(ctx, logger, cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			panic(fmt.Errorf("failed to initialize Redis transport: %w", err))
		}

		return tr
	case "slog", "":
		return transport.NewSlogTransport(logger)
	default:
		panic("Unsupported transport provider: " + cfg.Provider)
	}
}
