package annotations

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsAndForwards(t *testing.T) {
	var handled []Event
	c := NewCollector(func(e Event) { handled = append(handled, e) })

	c.Emit(ScheduleRequested, map[string]any{"machine": 1})
	c.AddTiming(OptimizeComplete, time.Now().Add(-time.Millisecond), map[string]any{"orders": 5})

	events := c.Events()
	require.Len(t, events, 2)
	require.Len(t, handled, 2)
	assert.Equal(t, ScheduleRequested, events[0].Name)
	assert.Equal(t, OptimizeComplete, events[1].Name)
	assert.Greater(t, events[1].Latency, time.Duration(0))

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestCollectorNilHandlerDisables(t *testing.T) {
	c := NewCollector(nil)
	c.Emit(ScheduleRequested, nil)
	assert.Empty(t, c.Events())
}

func TestCollectorNilReceiver(t *testing.T) {
	var c *Collector
	c.Emit(ScheduleRequested, nil)
	c.AddTiming(OptimizeComplete, time.Now(), nil)
	c.Reset()
	assert.Nil(t, c.Events())
	assert.Nil(t, c.Handler())
}

func TestFormatterClassifiesEvents(t *testing.T) {
	f := NewOutputFormatter(&strings.Builder{})

	warn := f.Format(Event{Name: WarnOrderDropped, Data: map[string]any{"count": 2}})
	assert.Contains(t, warn, "!")
	assert.Contains(t, warn, "warn/order.dropped")
	assert.Contains(t, warn, "count=2")

	errLine := f.Format(Event{Name: ErrorStore})
	assert.Contains(t, errLine, "✗")

	done := f.Format(Event{Name: ScheduleComputed})
	assert.Contains(t, done, "===")

	plain := f.Format(Event{Name: ScheduleRequested})
	assert.Contains(t, plain, "---")
}

func TestFormatterSortsDataKeys(t *testing.T) {
	f := NewOutputFormatter(&strings.Builder{})
	line := f.Format(Event{Name: ScheduleRequested, Data: map[string]any{
		"machine": 1, "count": 3, "action": "plan",
	}})
	assert.Contains(t, line, "(action=plan count=3 machine=1)")
}
