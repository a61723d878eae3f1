package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence"
	"github.com/hiveplane/hiveplane/pkg/services"
)

// APIHandlers exposes the orchestrator over REST.
type APIHandlers struct {
	orchestrator *services.Orchestrator
	persistence  persistence.Persistence
	validator    *validator.Validate
}

// NewAPIHandlers creates the handler set.
func NewAPIHandlers(orchestrator *services.Orchestrator, p persistence.Persistence, v *validator.Validate) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		persistence:  p,
		validator:    v,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// Agents

func (h *APIHandlers) RegisterAgent(c fiber.Ctx) error {
	var req RegisterAgentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	registered, err := h.orchestrator.RegisterAgent(c.Context(), req.ID, req.Name, req.Capabilities)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(registered)
}

func (h *APIHandlers) GetAgents(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.ListAgents())
}

func (h *APIHandlers) GetAgent(c fiber.Ctx) error {
	found, err := h.orchestrator.GetAgent(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) GetAgentContracts(c fiber.Ctx) error {
	contracts, err := h.orchestrator.GetAgentContracts(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(contracts)
}

func (h *APIHandlers) TransitionAgentState(c fiber.Ctx) error {
	var req TransitionAgentStateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.orchestrator.TransitionAgentState(c.Context(), c.Params("id"), models.AgentState(req.State))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Contracts

func (h *APIHandlers) CreateContract(c fiber.Ctx) error {
	var req CreateContractRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.orchestrator.CreateContract(c.Context(), contract.CreateRequest{
		Title:                req.Title,
		Description:          req.Description,
		Priority:             models.ContractPriority(req.Priority),
		RequiredCapabilities: req.RequiredCapabilities,
		EstimatedDuration:    time.Duration(req.EstimatedDurationSec) * time.Second,
		AutoValidate:         req.AutoValidate,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetContracts(c fiber.Ctx) error {
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ContractStatus(statusStr)
		if !models.ValidContractStatus(status) {
			return badRequest(c, "Unknown contract status: "+statusStr)
		}

		return c.JSON(h.orchestrator.ListContractsByStatus(status))
	}

	return c.JSON(h.orchestrator.ListContracts())
}

func (h *APIHandlers) GetContract(c fiber.Ctx) error {
	found, err := h.orchestrator.GetContract(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) GetContractSummary(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.GetContractSummary())
}

func (h *APIHandlers) ApproveContract(c fiber.Ctx) error {
	if err := h.orchestrator.ApproveContract(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AssignContract assigns a contract manually when an agent ID is given,
// otherwise asks the engine for the best match.
func (h *APIHandlers) AssignContract(c fiber.Ctx) error {
	var req AssignContractRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	var (
		assigned *models.Assignment
		err      error
	)

	if req.AgentID != "" {
		assigned, err = h.orchestrator.AssignContract(c.Context(), c.Params("id"), req.AgentID)
	} else {
		assigned, err = h.orchestrator.AutoAssignContract(c.Context(), c.Params("id"))
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(assigned)
}

func (h *APIHandlers) StartContract(c fiber.Ctx) error {
	if err := h.orchestrator.StartContract(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CompleteContract(c fiber.Ctx) error {
	if err := h.orchestrator.CompleteContract(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) FailContract(c fiber.Ctx) error {
	if err := h.orchestrator.FailContract(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CancelContract(c fiber.Ctx) error {
	var req CancelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.orchestrator.CancelContract(c.Context(), c.Params("id"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Assignments

func (h *APIHandlers) GetAssignments(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.ListAssignments())
}

// Workflows

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf := req.ToWorkflow()
	if err := h.orchestrator.CreateWorkflow(c.Context(), wf); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.orchestrator.ListWorkflows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.orchestrator.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.orchestrator.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Executions

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	execution, err := h.orchestrator.StartWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	return c.JSON(h.orchestrator.ListExecutions())
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.orchestrator.GetWorkflowStatus(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	var req CancelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.orchestrator.CancelExecution(c.Context(), c.Params("id"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
