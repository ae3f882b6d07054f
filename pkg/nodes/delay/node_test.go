package delay

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds int
		want    int
	}{
		{seconds: 30, want: 30},
		{seconds: 0, want: 0},
		{seconds: -5, want: 0},
		{seconds: 86400, want: MaxSeconds},
	}

	for _, tt := range tests {
		exec := &models.Execution{}
		outcome := Execute(exec, &models.Node{ID: "wait"}, models.DelayConfig{Seconds: tt.seconds})

		assert.True(t, outcome.Success)
		assert.Equal(t, tt.want, outcome.DelaySeconds)
		assert.Equal(t, tt.want, exec.Logs[0].Data["seconds"])
	}
}
