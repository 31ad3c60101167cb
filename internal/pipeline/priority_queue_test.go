package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_PopsHighestPriorityFirst(t *testing.T) {
	// Given: a queue with items at every priority band, enqueued low to high
	q := NewPriorityQueue(0)
	require.NoError(t, q.Push(&WorkItem{Path: "background.go", Priority: PriorityBackground}))
	require.NoError(t, q.Push(&WorkItem{Path: "watched.go", Priority: PriorityWatched}))
	require.NoError(t, q.Push(&WorkItem{Path: "interactive.go", Priority: PriorityInteractive}))

	// Then: Pop returns them highest priority first
	assert.Equal(t, "interactive.go", q.Pop().Path)
	assert.Equal(t, "watched.go", q.Pop().Path)
	assert.Equal(t, "background.go", q.Pop().Path)
	assert.Nil(t, q.Pop())
}

func TestPriorityQueue_SamePriorityIsFIFO(t *testing.T) {
	// Given: three same-priority items enqueued in order
	q := NewPriorityQueue(0)
	now := time.Now()
	require.NoError(t, q.Push(&WorkItem{Path: "a.go", Priority: PriorityWatched, EnqueuedAt: now}))
	require.NoError(t, q.Push(&WorkItem{Path: "b.go", Priority: PriorityWatched, EnqueuedAt: now.Add(time.Millisecond)}))
	require.NoError(t, q.Push(&WorkItem{Path: "c.go", Priority: PriorityWatched, EnqueuedAt: now.Add(2 * time.Millisecond)}))

	// Then: Pop drains them in enqueue order
	assert.Equal(t, "a.go", q.Pop().Path)
	assert.Equal(t, "b.go", q.Pop().Path)
	assert.Equal(t, "c.go", q.Pop().Path)
}

func TestPriorityQueue_RespectsCapacity(t *testing.T) {
	// Given: a queue bounded at 2 items
	q := NewPriorityQueue(2)
	require.NoError(t, q.Push(&WorkItem{Path: "a.go"}))
	require.NoError(t, q.Push(&WorkItem{Path: "b.go"}))

	// When: a third item is pushed
	err := q.Push(&WorkItem{Path: "c.go"})

	// Then: it is rejected with ErrQueueFull and the depth stays at capacity
	require.Error(t, err)
	assert.IsType(t, ErrQueueFull{}, err)
	assert.Equal(t, 2, q.Len())
}

func TestPriorityQueue_LenTracksPushAndPop(t *testing.T) {
	q := NewPriorityQueue(0)
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Push(&WorkItem{Path: "a.go"}))
	assert.Equal(t, 1, q.Len())

	q.Pop()
	assert.Equal(t, 0, q.Len())
}
