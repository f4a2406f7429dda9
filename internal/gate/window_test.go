package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/storage"
)

func TestActivateRejectsNonPositiveDuration(t *testing.T) {
	w := NewWindow(zap.NewNop())

	assert.ErrorIs(t, w.Activate(0), storage.ErrInvalidInput)
	assert.ErrorIs(t, w.Activate(-5), storage.ErrInvalidInput)
	assert.False(t, w.IsActive())
}

func TestWindowActivatesAndElapses(t *testing.T) {
	w := NewWindow(zap.NewNop())
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return current }

	require.NoError(t, w.Activate(30))
	assert.True(t, w.IsActive())
	assert.Equal(t, current.Add(30*time.Second), w.Deadline())

	current = current.Add(29 * time.Second)
	assert.True(t, w.IsActive())

	current = current.Add(time.Second)
	assert.False(t, w.IsActive())
	assert.True(t, w.Deadline().IsZero())
}

func TestActivateReplacesRunningWindow(t *testing.T) {
	w := NewWindow(zap.NewNop())
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return current }

	require.NoError(t, w.Activate(10))
	require.NoError(t, w.Activate(60))

	current = current.Add(30 * time.Second)
	assert.True(t, w.IsActive(), "the longer window wins")
}
