package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/hiveplane/hiveplane/pkg/assignment"
	"github.com/hiveplane/hiveplane/pkg/channels/gochannel"
	"github.com/hiveplane/hiveplane/pkg/contract"
	"github.com/hiveplane/hiveplane/pkg/eventbus"
	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/hiveplane/hiveplane/pkg/persistence/file"
	"github.com/hiveplane/hiveplane/pkg/services"
	"github.com/hiveplane/hiveplane/pkg/transport"
	"github.com/hiveplane/hiveplane/pkg/web"
	"github.com/hiveplane/hiveplane/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()

	registry := agent.NewRegistry(logger, agent.ModeValidated)
	contracts := contract.NewStore(logger)
	assignments := assignment.NewEngine(registry, contracts, assignment.DefaultConfig(), logger)
	workflows := workflow.NewEngine(workflow.DefaultMaxConcurrent, logger)
	p := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	orchestrator := services.NewOrchestrator(
		registry, contracts, assignments, workflows,
		p, bus, transport.NewSlogTransport(logger), logger,
	)

	handlers := web.NewAPIHandlers(orchestrator, p, validator.New(validator.WithRequiredStructEnabled()))

	return web.NewApp(handlers)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func registerAgent(t *testing.T, app *fiber.App, id string, capabilities ...string) {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/agents", web.RegisterAgentRequest{
		ID:           id,
		Name:         "Worker " + id,
		Capabilities: capabilities,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_RegisterAgent(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/agents", web.RegisterAgentRequest{
		ID:           "w1",
		Name:         "Worker One",
		Capabilities: []string{"deploy"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	registered := decode[models.Agent](t, resp)
	assert.Equal(t, models.AgentStatusAvailable, registered.Status)

	// Duplicate registration conflicts.
	resp = doJSON(t, app, http.MethodPost, "/agents", web.RegisterAgentRequest{
		ID:   "w1",
		Name: "Worker One",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Missing required fields.
	resp = doJSON(t, app, http.MethodPost, "/agents", map[string]string{"name": "No ID"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ContractLifecycle(t *testing.T) {
	app := setupTestApp(t)

	registerAgent(t, app, "w1", "deploy")

	resp := doJSON(t, app, http.MethodPost, "/contracts", web.CreateContractRequest{
		Title:                "Ship release",
		Description:          "Deploy the release to production",
		Priority:             "urgent",
		RequiredCapabilities: []string{"deploy"},
		AutoValidate:         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.Contract](t, resp)
	assert.Equal(t, models.ContractStatusAssigned, created.Status)
	require.NotNil(t, created.AssignedAgent)
	assert.Equal(t, "w1", *created.AssignedAgent)

	resp = doJSON(t, app, http.MethodPost, "/contracts/"+created.ID+"/start", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/contracts/"+created.ID+"/complete", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/contracts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ContractStatusCompleted, decode[models.Contract](t, resp).Status)
}

func TestAPI_CreateContract_Validation(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/contracts", web.CreateContractRequest{
		Title:       "x",
		Description: "too short",
		Priority:    "someday",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AssignContract_NoEligibleAgent(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/contracts", web.CreateContractRequest{
		Title:                "Ship release",
		Description:          "Deploy the release to production",
		Priority:             "normal",
		RequiredCapabilities: []string{"deploy"},
		AutoValidate:         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Contract](t, resp)

	resp = doJSON(t, app, http.MethodPost, "/contracts/"+created.ID+"/assign", web.AssignContractRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_GetContract_NotFound(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/contracts/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ContractSummaryAndFilter(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/contracts", web.CreateContractRequest{
		Title:        "Ship release",
		Description:  "Deploy the release to production",
		Priority:     "normal",
		AutoValidate: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/contracts?status=approved", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Contract](t, resp), 1)

	resp = doJSON(t, app, http.MethodGet, "/contracts?status=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/contracts/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summary := decode[models.ContractSummary](t, resp)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[models.ContractStatusApproved])
}

func TestAPI_WorkflowEndpoints(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/workflows", web.CreateWorkflowRequest{
		ID:   "wf-release",
		Name: "release pipeline",
		Steps: []models.WorkflowStep{
			{ID: "build", Name: "Build", Type: "shell"},
			{ID: "deploy", Name: "Deploy", Type: "shell", DependsOn: []string{"build"}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/wf-release", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "release pipeline", decode[models.Workflow](t, resp).Name)

	// Cyclic definitions are rejected up front.
	resp = doJSON(t, app, http.MethodPost, "/workflows", web.CreateWorkflowRequest{
		ID:   "wf-cycle",
		Name: "cyclic pipeline",
		Steps: []models.WorkflowStep{
			{ID: "a", Name: "A", Type: "shell", DependsOn: []string{"b"}},
			{ID: "b", Name: "B", Type: "shell", DependsOn: []string{"a"}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/workflows/wf-release/executions", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	execution := decode[models.WorkflowExecution](t, resp)
	assert.Equal(t, models.ExecutionStatusInProgress, execution.Status)

	resp = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/executions/"+execution.ID+"/cancel", web.CancelRequest{Reason: "operator stop"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/workflows/wf-release", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/wf-release", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
