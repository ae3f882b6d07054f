package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/audit"
	"github.com/dukex/formflow/pkg/httpclient"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/dukex/formflow/pkg/mocks"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/nodes/apicall"
	"github.com/dukex/formflow/pkg/nodes/approvalgate"
	"github.com/dukex/formflow/pkg/nodes/email"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/persistence/file"
	"github.com/dukex/formflow/pkg/schema"
	"github.com/dukex/formflow/pkg/services"
	"github.com/dukex/formflow/pkg/web"
	"github.com/dukex/formflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingScheduler struct {
	mu    sync.Mutex
	count int
}

func (s *countingScheduler) Schedule(context.Context, workflow.StepRef, time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++

	return nil
}

type testEnv struct {
	app       *fiber.App
	store     persistence.Persistence
	engine    *workflow.Executor
	scheduler *countingScheduler
	mailer    *mocks.MockMailer
	token     string
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	validate := validator.New(validator.WithRequiredStructEnabled())

	registry, err := schema.NewRegistry()
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		scheduler: &countingScheduler{},
		mailer:    &mocks.MockMailer{},
	}

	env.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		text := args.Get(1).(mail.Message).Text
		env.token = text[strings.LastIndex(text, "/")+1:]
	}).Return(nil)

	approvals := approval.NewService(store.ApprovalRepository(), audit.NewSlogSink(logger), logger)

	env.engine = workflow.NewExecutor(store, env.scheduler, lock.NewLocalLocker(), nil, workflow.Steps{
		APICall:  apicall.NewExecutor(httpclient.New(nil), &mocks.MockSSRFValidator{}, logger),
		Approval: approvalgate.NewExecutor(approvals, env.mailer, "https://forms.example.com", logger),
		Email:    email.NewExecutor(store.TemplateRepository(), env.mailer, logger),
	}, logger)
	approvals.SetContinuer(env.engine)

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, validate, registry, logger),
		services.NewNode(registry),
		env.engine,
		approvals,
		store,
		validate,
		logger,
	)

	env.app = fiber.New()
	handlers.Register(env.app)

	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func approvalWorkflowRequest() web.CreateWorkflowRequest {
	formID := "form-1"

	return web.CreateWorkflowRequest{
		Name:      "Purchase approval",
		FormID:    &formID,
		TriggerOn: models.TriggerOnSubmission,
		Active:    true,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "approve", Type: models.NodeTypeApproval, Data: map[string]any{"approver_email": "boss@example.com"}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "approve"},
			{ID: "e2", Source: "approve", Target: "end"},
		},
	}
}

func (env *testEnv) createWorkflow(t *testing.T, req web.CreateWorkflowRequest) *models.Workflow {
	t.Helper()

	status, body := env.do(t, http.MethodPost, "/workflows", req)
	require.Equal(t, http.StatusCreated, status, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	return &workflow
}

func problemType(t *testing.T, body []byte) string {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	kind, _ := problem["type"].(string)

	return kind
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "healthy")
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{name: "successful creation", requestBody: approvalWorkflowRequest(), expectedStatus: http.StatusCreated},
		{
			name: "missing name",
			requestBody: func() web.CreateWorkflowRequest {
				req := approvalWorkflowRequest()
				req.Name = ""

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "two start nodes",
			requestBody: func() web.CreateWorkflowRequest {
				req := approvalWorkflowRequest()
				req.Nodes = append(req.Nodes, &models.Node{ID: "start-2", Type: models.NodeTypeStart})

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "node data rejected by schema",
			requestBody: func() web.CreateWorkflowRequest {
				req := approvalWorkflowRequest()
				req.Nodes[1].Data = map[string]any{"approver_email": 42}

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{name: "invalid JSON", requestBody: "invalid-json", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			status, body := env.do(t, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if status == http.StatusBadRequest {
				assert.Equal(t, "validation_error", problemType(t, body))
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", problemType(t, body))
}

func TestAPIHandlers_UpdateWorkflowGraph(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	created := env.createWorkflow(t, approvalWorkflowRequest())

	graph := web.UpdateGraphRequest{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{{ID: "e1", Source: "start", Target: "end"}},
	}

	status, body := env.do(t, http.MethodPut, "/workflows/"+created.ID+"/graph", graph)
	require.Equal(t, http.StatusOK, status, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.Nodes, 2)

	status, body = env.do(t, http.MethodGet, "/workflows/"+created.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, status)

	var versions []models.WorkflowVersion
	require.NoError(t, json.Unmarshal(body, &versions))
	assert.Len(t, versions, 2)

	graph.Edges = append(graph.Edges, &models.Edge{ID: "e2", Source: "end", Target: "ghost"})
	status, _ = env.do(t, http.MethodPut, "/workflows/"+created.ID+"/graph", graph)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_TestWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	created := env.createWorkflow(t, approvalWorkflowRequest())

	status, body := env.do(t, http.MethodPost, "/workflows/"+created.ID+"/test", web.TestWorkflowRequest{
		Data: map[string]any{"amount": 10},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var result struct {
		Steps []struct {
			NodeID string `json:"node_id"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Steps, 3)
	assert.Equal(t, "approve", result.Steps[1].NodeID)
	assert.Zero(t, env.scheduler.count)
}

func TestAPIHandlers_SubmitTriggersWorkflows(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	env.createWorkflow(t, approvalWorkflowRequest())

	status, body := env.do(t, http.MethodPost, "/submissions", web.SubmitRequest{
		FormID: "form-1",
		Data:   map[string]any{"amount": 250},
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var response web.TriggerResponse
	require.NoError(t, json.Unmarshal(body, &response))
	require.Len(t, response.ExecutionIDs, 1)
	assert.Empty(t, response.Errors)

	status, body = env.do(t, http.MethodGet, "/executions/"+response.ExecutionIDs[0], nil)
	require.Equal(t, http.StatusOK, status)

	var exec models.Execution
	require.NoError(t, json.Unmarshal(body, &exec))
	assert.Equal(t, models.ExecutionStatusRunning, exec.Status)
	assert.Equal(t, response.SubmissionID, exec.SubmissionID)

	status, body = env.do(t, http.MethodPost, "/submissions/"+response.SubmissionID+"/trigger", nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	status, body = env.do(t, http.MethodPost, "/submissions/missing/trigger", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "submission_not_found", problemType(t, body))
}

func TestAPIHandlers_StartExecutionRequiresActive(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	req := approvalWorkflowRequest()
	req.Active = false
	created := env.createWorkflow(t, req)

	status, _ := env.do(t, http.MethodPost, "/workflows/"+created.ID+"/executions", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body := env.do(t, http.MethodPost, "/workflows/"+created.ID+"/executions", nil)
	assert.Equal(t, http.StatusAccepted, status, string(body))
}

func TestAPIHandlers_StopExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	created := env.createWorkflow(t, approvalWorkflowRequest())

	status, body := env.do(t, http.MethodPost, "/workflows/"+created.ID+"/executions", nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var exec models.Execution
	require.NoError(t, json.Unmarshal(body, &exec))

	status, body = env.do(t, http.MethodPost, "/executions/"+exec.ID+"/stop", web.StopExecutionRequest{StoppedBy: "admin"})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &exec))
	assert.Equal(t, models.ExecutionStatusStopped, exec.Status)

	status, _ = env.do(t, http.MethodPost, "/executions/missing/stop", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_ApprovalFlow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	created := env.createWorkflow(t, approvalWorkflowRequest())

	status, body := env.do(t, http.MethodPost, "/workflows/"+created.ID+"/executions", nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var exec models.Execution
	require.NoError(t, json.Unmarshal(body, &exec))
	require.NoError(t, env.engine.ExecuteStep(t.Context(), exec.ID, 0))
	require.Len(t, env.token, approval.TokenLength)

	status, body = env.do(t, http.MethodGet, "/approvals/"+env.token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.NotContains(t, string(body), env.token)
	assert.Contains(t, string(body), "boss@example.com")

	status, body = env.do(t, http.MethodPost, "/approvals/"+env.token+"/approve", web.ApprovalDecisionRequest{
		Comment: "<b>ok</b>",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"comment":"ok"`)

	status, body = env.do(t, http.MethodPost, "/approvals/"+env.token+"/approve", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", problemType(t, body))

	status, body = env.do(t, http.MethodGet, "/executions/"+exec.ID, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &exec))
	assert.Equal(t, models.ExecutionStatusRunning, exec.Status)
	assert.Equal(t, "end", exec.CurrentNodeID)
}

func TestAPIHandlers_ExpiredApproval(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	token, err := approval.GenerateToken()
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, env.store.ApprovalRepository().Create(t.Context(), &models.ApprovalRequest{
		ID:            "approval-1",
		ExecutionID:   "exec-1",
		NodeID:        "approve",
		Token:         token,
		ApproverEmail: "boss@example.com",
		Status:        models.ApprovalStatusPending,
		ExpiresAt:     now.Add(-time.Hour),
		CreatedAt:     now.Add(-8 * 24 * time.Hour),
	}))

	for _, action := range []string{"approve", "reject"} {
		status, body := env.do(t, http.MethodPost, "/approvals/"+token+"/"+action, nil)
		assert.Equal(t, http.StatusGone, status)
		assert.Equal(t, "token_expired", problemType(t, body))
	}

	status, _ := env.do(t, http.MethodGet, "/approvals/short-token", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, status)

	var types []services.NodeType
	require.NoError(t, json.Unmarshal(body, &types))
	assert.Len(t, types, len(models.NodeTypes))
}
