package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogSink_Log(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	sink.Log(context.Background(), Entry{
		Action:      "approval.approved",
		SubjectType: "approval_request",
		SubjectID:   "ap-1",
		OldValues:   map[string]any{"status": "pending"},
		NewValues:   map[string]any{"status": "approved"},
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "approval.approved", record["msg"])
	assert.Equal(t, true, record["audit"])
	assert.Equal(t, "ap-1", record["subject_id"])
	assert.Equal(t, map[string]any{"status": "approved"}, record["new_values"])
}
