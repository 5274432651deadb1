package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p := New(WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, p.Initialize())
	return p
}

func TestValid(t *testing.T) {
	p := newProvider(t)

	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/5 * * * *", true},
		{"0 0 * * MON", true},
		{"@hourly", true},
		{"not a cron", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			result, err := p.Execute("valid", map[string]any{"expr": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result)
		})
	}
}

func TestNext(t *testing.T) {
	p := newProvider(t)

	result, err := p.Execute("next", map[string]any{"expr": "0 * * * *"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10T10:00:00Z", result)

	result, err = p.Execute("next", map[string]any{"arg_0": "0 12 * * *", "arg_1": "2024-01-01T13:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T12:00:00Z", result)
}

func TestNextN(t *testing.T) {
	p := newProvider(t)

	result, err := p.Execute("next_n", map[string]any{"expr": "*/15 * * * *", "count": 3.0})
	require.NoError(t, err)
	assert.Equal(t, []any{"2024-05-10T09:45:00Z", "2024-05-10T10:00:00Z", "2024-05-10T10:15:00Z"}, result)

	_, err = p.Execute("next_n", map[string]any{"expr": "* * * * *", "count": 500.0})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
}

func TestDue(t *testing.T) {
	p := newProvider(t)

	due, err := p.Execute("due", map[string]any{"expr": "0 9 * * *", "since": "2024-05-10T08:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, true, due)

	due, err = p.Execute("due", map[string]any{"expr": "0 10 * * *", "since": "2024-05-10T08:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, false, due)
}

func TestErrors(t *testing.T) {
	p := newProvider(t)

	_, err := p.Execute("next", map[string]any{"expr": "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid cron expression "bogus"`)

	_, err = p.Execute("next", map[string]any{"expr": "* * * * *", "from": "yesterday"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("due", map[string]any{"expr": "* * * * *"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("previous", nil)
	assert.ErrorIs(t, err, plugin.ErrMethodNotFound)

	_, err = New().Execute("valid", map[string]any{"expr": "* * * * *"})
	assert.ErrorIs(t, err, plugin.ErrNotInitialized)
}
