//go:build integration

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/audit"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence/postgresql"
	"github.com/dukex/formflow/pkg/schema"
	"github.com/dukex/formflow/pkg/services"
	"github.com/dukex/formflow/pkg/web"
	"github.com/dukex/formflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupIntegrationApp(t *testing.T) *testEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("formflow_web"),
		postgres.WithUsername("formflow"),
		postgres.WithPassword("formflow"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := postgresql.NewPersistence(ctx, logger, dbURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	registry, err := schema.NewRegistry()
	require.NoError(t, err)

	validate := validator.New(validator.WithRequiredStructEnabled())
	approvals := approval.NewService(store.ApprovalRepository(), audit.NewSlogSink(logger), logger)

	env := &testEnv{store: store, scheduler: &countingScheduler{}}
	env.engine = workflow.NewExecutor(store, env.scheduler, lock.NewLocalLocker(), nil, workflow.Steps{}, logger)
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

func TestWorkflowLifecycle_Integration(t *testing.T) {
	env := setupIntegrationApp(t)

	req := approvalWorkflowRequest()
	req.Nodes = []*models.Node{
		{ID: "start", Type: models.NodeTypeStart},
		{ID: "end", Type: models.NodeTypeEnd},
	}
	req.Edges = []*models.Edge{{ID: "e1", Source: "start", Target: "end"}}

	created := env.createWorkflow(t, req)

	status, body := env.do(t, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.Name, fetched.Name)
	assert.Equal(t, 1, fetched.Version)

	status, body = env.do(t, http.MethodPost, "/submissions", web.SubmitRequest{
		FormID: "form-1",
		Data:   map[string]any{"amount": 12},
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var response web.TriggerResponse
	require.NoError(t, json.Unmarshal(body, &response))
	require.Len(t, response.ExecutionIDs, 1)

	executionID := response.ExecutionIDs[0]
	require.NoError(t, env.engine.ExecuteStep(t.Context(), executionID, 0))

	status, body = env.do(t, http.MethodGet, "/executions/"+executionID, nil)
	require.Equal(t, http.StatusOK, status)

	var exec models.Execution
	require.NoError(t, json.Unmarshal(body, &exec))
	assert.Equal(t, models.ExecutionStatusCompleted, exec.Status)
	assert.NotNil(t, exec.CompletedAt)

	status, _ = env.do(t, http.MethodPost, "/executions/"+executionID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, status)
}
