package cmd

import (
	"context"
	"log/slog"

	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/assignment"
	"github.com/hiveplane/hiveplane/pkg/config"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/eventbus"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/services"
	"github.com/hiveplane/hiveplane/pkg/transport"
	"github.com/hiveplane/hiveplane/pkg/workflow"
)

// Runtime bundles the assembled orchestration core with the
// infrastructure it runs on.
type Runtime struct {
	Orchestrator *services.Orchestrator
	Workflows    *workflow.Engine
	Persistence  persistence.Persistence
	EventBus     eventbus.EventBus
	Transport    transport.Transport

	logger *slog.Logger
}

// NewRuntime assembles the orchestration core from configuration and
// restores the persisted snapshot.
func NewRuntime(ctx context.Context, logger *slog.Logger, cfg config.OrchestratorConfig, serviceName string) (*Runtime, error) {
	p := NewPersistence(ctx, logger, cfg.DatabaseURL)
	bus := NewEventBus(cfg.EventBus, serviceName, logger)
	tr := NewTransport(ctx, logger, cfg.Transport)

	registry := agent.NewRegistry(logger, cfg.FSM())
	contracts := contract.NewStore(logger)
	assignments := assignment.NewEngine(registry, contracts, assignment.Config{
		AutoAssign:    cfg.AutoAssign,
		MaxActiveLoad: cfg.MaxActiveLoad,
	}, logger)
	workflows := workflow.NewEngine(cfg.MaxConcurrent, logger)

	orchestrator := services.NewOrchestrator(
		registry, contracts, assignments, workflows,
		p, bus, tr, logger,
	)

	if err := orchestrator.Restore(ctx); err != nil {
		return nil, err
	}

	return &Runtime{
		Orchestrator: orchestrator,
		Workflows:    workflows,
		Persistence:  p,
		EventBus:     bus,
		Transport:    tr,
		logger:       logger,
	}, nil
}

// Close shuts down the runtime's infrastructure.
func (r *Runtime) Close(ctx context.Context) {
	if err := r.EventBus.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := r.Transport.Close(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close transport", "error", err)
	}

	if err := r.Persistence.Close(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
