package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodePoolExhaustion(t *testing.T) {
	pool := NewDtNodePool(4, 3)
	assert.EqualValues(t, 4, pool.GetHashSize())
	for i := 1; i <= 4; i++ {
		node := pool.GetNode(DtPolyRef(i), 0)
		require.NotNil(t, node)
		assert.EqualValues(t, i, pool.GetNodeIdx(node))
	}
	assert.Nil(t, pool.GetNode(5, 0))
	// Existing nodes are still found when the pool is full.
	assert.NotNil(t, pool.GetNode(2, 0))
	assert.EqualValues(t, 4, pool.GetNodeCount())

	pool.Clear()
	assert.EqualValues(t, 0, pool.GetNodeCount())
	assert.Nil(t, pool.FindNode(2, 0))
	assert.NotNil(t, pool.GetNode(5, 0))
}

func TestNodePoolStates(t *testing.T) {
	pool := NewDtNodePool(8, 8)
	a := pool.GetNode(7, 0)
	b := pool.GetNode(7, 1)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	assert.Same(t, a, pool.FindNode(7, 0))
	assert.Len(t, pool.FindNodes(7, 4), 2)
	assert.Len(t, pool.FindNodes(7, 1), 1)
	assert.Same(t, b, pool.GetNodeAtIdx(pool.GetNodeIdx(b)))
	assert.Nil(t, pool.GetNodeAtIdx(0))
}

func TestNodeQueueOrder(t *testing.T) {
	pool := NewDtNodePool(16, 16)
	q := NewDtNodeQueue(16)
	totals := []float32{5, 3, 9, 1, 7, 4}
	nodes := make([]*DtNode, len(totals))
	for i, total := range totals {
		nodes[i] = pool.GetNode(DtPolyRef(i+1), 0)
		nodes[i].Total = total
		q.Offer(nodes[i])
	}
	assert.Equal(t, len(totals), q.Len())

	// Decrease-key moves the node to the front.
	nodes[2].Total = 0.5
	q.Update(nodes[2])
	assert.Same(t, nodes[2], q.Peek())

	var got []float32
	for !q.Empty() {
		got = append(got, q.Poll().Total)
	}
	assert.Equal(t, []float32{0.5, 1, 3, 4, 5, 7}, got)

	q.Offer(nodes[0])
	q.Reset()
	assert.True(t, q.Empty())
}
