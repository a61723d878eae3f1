// Package sweeper periodically auto-assigns approved contracts that are
// still waiting for an agent.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/robfig/cron/v3"
)

// Assigner is the slice of the orchestrator the sweeper needs: list
// contracts and auto-assign one.
type Assigner interface {
	ListContractsByStatus(status models.ContractStatus) []*models.Contract
	AutoAssignContract(ctx context.Context, contractID string) (*models.Assignment, error)
	ShouldAutoAssign(contract *models.Contract) bool
}

// Sweeper runs the assignment sweep on a cron schedule. Contracts become
// eligible between sweeps when agents free up capacity or come online, so
// a periodic pass catches what event-driven assignment missed.
type Sweeper struct {
	Schedule string

	assigner Assigner
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper validates the cron expression and creates a sweeper.
func NewSweeper(schedule string, assigner Assigner, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		return nil, errors.New("sweeper cron expression is required")
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &Sweeper{
		Schedule: schedule,
		assigner: assigner,
		logger: logger.With(
			"module", "assignment_sweeper",
			"cron", schedule,
		),
	}, nil
}

// Start registers the sweep as a cron job. Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting assignment sweeper")

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.Schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for sweeper: %w", err)
	}

	s.cron.Start()

	return nil
}

// Sweep walks approved contracts and tries to auto-assign the eligible
// ones. Failures are logged and skipped; the next sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) {
	contracts := s.assigner.ListContractsByStatus(models.ContractStatusApproved)

	assigned := 0

	for _, contract := range contracts {
		if !s.assigner.ShouldAutoAssign(contract) {
			continue
		}

		assignment, err := s.assigner.AutoAssignContract(ctx, contract.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "Sweep could not assign contract",
				"contract_id", contract.ID,
				"error", err,
			)

			continue
		}

		assigned++

		s.logger.InfoContext(ctx, "Sweep assigned contract",
			"contract_id", contract.ID,
			"agent_id", assignment.AgentID,
		)
	}

	if assigned > 0 {
		s.logger.InfoContext(ctx, "Assignment sweep completed", "assigned", assigned)
	}
}

// Stop halts the cron scheduler. A sweep already in flight finishes.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping assignment sweeper")

	if s.cron != nil {
		s.cron.Stop()
	}

	return nil
}
