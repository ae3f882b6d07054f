package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	t.Parallel()

	event := NewBaseEvent(StepScheduledEvent, "wf-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, StepScheduledEvent, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestStepScheduled_JSONShape(t *testing.T) {
	t.Parallel()

	event := StepScheduled{
		BaseEvent:   NewBaseEvent(StepScheduledEvent, "wf-1"),
		ExecutionID: "exec-1",
		NodeID:      "n2",
		Step:        3,
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))

	assert.Equal(t, "exec-1", raw["execution_id"])
	assert.Equal(t, "n2", raw["node_id"])
	assert.InDelta(t, 3, raw["step"], 0)
	assert.Equal(t, string(StepScheduledEvent), raw["type"])
	assert.Equal(t, StepScheduledEvent, event.GetType())
}

func TestExecutionFinished_GetType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExecutionFinishedEvent, ExecutionFinished{}.GetType())
}
