package approvalgate

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/dukex/formflow/pkg/mocks"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const appURL = "https://forms.example.com"

func setup(t *testing.T, mailer mail.Mailer) (*Executor, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	service := approval.NewService(store.ApprovalRepository(), &mocks.MockAuditSink{}, logger)

	return NewExecutor(service, mailer, appURL+"/", logger), store
}

func runningExecution() *models.Execution {
	return &models.Execution{
		ID:     "exec-1",
		Status: models.ExecutionStatusRunning,
		Context: map[string]any{
			"submission": map[string]any{"data": map[string]any{"manager": "boss@example.com", "item": "Laptop"}},
		},
	}
}

func TestExecute_WaitsAndNotifies(t *testing.T) {
	t.Parallel()

	var sent mail.Message

	mailer := &mocks.MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(mail.Message)
	}).Return(nil).Once()

	executor, store := setup(t, mailer)
	exec := runningExecution()
	node := &models.Node{ID: "approve", Type: models.NodeTypeApproval, Data: map[string]any{"label": "Manager"}}

	outcome, err := executor.Execute(t.Context(), exec, node, models.ApprovalConfig{
		ApproverEmail: "{{submission.data.manager}}",
		Message:       "Please approve {{submission.data.item}}",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.Wait)
	assert.Equal(t, models.ExecutionStatusWaitingApproval, exec.Status)
	require.Len(t, exec.Logs, 1)
	assert.Equal(t, "Waiting for approval", exec.Logs[0].Message)

	assert.Equal(t, "boss@example.com", sent.To)
	assert.Equal(t, "Approval required: Manager", sent.Subject)
	assert.Contains(t, sent.HTML, "Please approve Laptop")

	prefix := appURL + "/approvals/"
	idx := strings.Index(sent.Text, prefix)
	require.GreaterOrEqual(t, idx, 0)

	token := sent.Text[idx+len(prefix):]
	assert.Len(t, token, approval.TokenLength)
	assert.Contains(t, sent.HTML, executor.Link(token))

	request, err := store.ApprovalRepository().FindPendingByToken(t.Context(), token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "exec-1", request.ExecutionID)
	assert.Equal(t, "approve", request.NodeID)
}

func TestExecute_NotificationFailureStillWaits(t *testing.T) {
	t.Parallel()

	mailer := &mocks.MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	executor, _ := setup(t, mailer)
	exec := runningExecution()

	outcome, err := executor.Execute(t.Context(), exec, &models.Node{ID: "approve"}, models.ApprovalConfig{
		ApproverEmail: "boss@example.com",
		Subject:       "Sign off",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Wait)
	assert.Equal(t, models.ExecutionStatusWaitingApproval, exec.Status)
	assert.Equal(t, "Approval notification failed", exec.Logs[len(exec.Logs)-1].Message)
}

func TestExecute_NoApprover(t *testing.T) {
	t.Parallel()

	mailer := &mocks.MockMailer{}
	executor, _ := setup(t, mailer)
	exec := runningExecution()

	outcome, err := executor.Execute(t.Context(), exec, &models.Node{ID: "approve"}, models.ApprovalConfig{
		ApproverEmail: "{{submission.data.director}}",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Wait)
	assert.Equal(t, models.ExecutionStatusRunning, exec.Status)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
