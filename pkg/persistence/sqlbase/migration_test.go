package sqlbase

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationManager_VersionsAreOrdered(t *testing.T) {
	t.Parallel()

	manager := NewMigrationManager(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, map[int]string{
		3:  "SELECT 3",
		1:  "SELECT 1",
		10: "SELECT 10",
		2:  "SELECT 2",
	})

	assert.Equal(t, []int{1, 2, 3, 10}, manager.Versions())
}
