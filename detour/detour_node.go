package detour

import (
	"container/heap"

	"github.com/gorustyt/navquery/common"
)

const (
	DT_NODE_OPEN            = 0x01
	DT_NODE_CLOSED          = 0x02
	DT_NODE_PARENT_DETACHED = 0x04 // parent of the node is not adjacent. Found using raycast.
)

type DtNodeIndex int32

const (
	DT_NODE_PARENT_BITS    = 24
	DT_NODE_STATE_BITS     = 2
	DT_MAX_STATES_PER_NODE = 1 << DT_NODE_STATE_BITS // number of extra states per node. See DtNode::state

	DT_NULL_IDX      DtNodeIndex = -1
	DT_MAX_POOL_SIZE             = 1<<DT_NODE_PARENT_BITS - 1
)

type DtNode struct {
	Pos   common.Vec3 ///< Position of the node.
	Cost  float32     ///< Cost from previous node to current node.
	Total float32     ///< Cost up to the node.
	Pidx  uint32      ///< Index to parent node, 0 for none.
	State uint8       ///< extra state information. A polyRef can have multiple nodes with different extra info. see DT_MAX_STATES_PER_NODE
	Flags uint8       ///< Node flags. A combination of DtNodeFlags.
	Id    DtPolyRef   ///< Polygon ref the node corresponds to.

	poolIdx   uint32 // 1-based position in the owning pool
	heapIndex int    // 堆中移除和更新对象用
}

// DtNodeQueue is the open list: a binary min-heap on DtNode.Total.
type DtNodeQueue struct {
	data []*DtNode
}

func NewDtNodeQueue(capacity int) *DtNodeQueue {
	return &DtNodeQueue{data: make([]*DtNode, 0, capacity)}
}

func (q *DtNodeQueue) Reset() { q.data = q.data[:0] }

func (q *DtNodeQueue) Empty() bool { return len(q.data) == 0 }

// 查看堆顶
func (q *DtNodeQueue) Peek() *DtNode { return q.data[0] }

// 从堆顶弹出一个元素
func (q *DtNodeQueue) Poll() *DtNode { return heap.Pop(q).(*DtNode) }

// 插入一个元素
func (q *DtNodeQueue) Offer(node *DtNode) { heap.Push(q, node) }

// Update restores heap order after node.Total decreased.
func (q *DtNodeQueue) Update(node *DtNode) {
	if node.heapIndex >= 0 && node.heapIndex < len(q.data) && q.data[node.heapIndex] == node {
		heap.Fix(q, node.heapIndex)
	}
}

func (q *DtNodeQueue) Len() int           { return len(q.data) }
func (q *DtNodeQueue) Less(i, j int) bool { return q.data[i].Total < q.data[j].Total }
func (q *DtNodeQueue) Swap(i, j int) {
	q.data[i], q.data[j] = q.data[j], q.data[i]
	q.data[i].heapIndex = i
	q.data[j].heapIndex = j
}

func (q *DtNodeQueue) Push(x any) {
	node := x.(*DtNode)
	node.heapIndex = len(q.data)
	q.data = append(q.data, node)
}

func (q *DtNodeQueue) Pop() any {
	n := len(q.data)
	node := q.data[n-1]
	q.data[n-1] = nil
	q.data = q.data[:n-1]
	node.heapIndex = -1
	return node
}

func dtHashRef(a DtPolyRef) uint32 {
	a += ^(a << 15)
	a ^= a >> 10
	a += a << 3
	a ^= a >> 6
	a += ^(a << 11)
	a ^= a >> 16
	return uint32(a)
}

// DtNodePool hands out search nodes keyed by (ref, state). Storage is allocated
// once; Clear only resets the hash buckets.
type DtNodePool struct {
	m_nodes     []DtNode
	m_first     []DtNodeIndex
	m_next      []DtNodeIndex
	m_maxNodes  int32
	m_hashSize  int32
	m_nodeCount int32
}

// NewDtNodePool creates a pool of maxNodes nodes. hashSize is rounded up to a
// power of two.
func NewDtNodePool(maxNodes, hashSize int32) *DtNodePool {
	// pidx is special as 0 means "none" and 1 is the first node. For that reason
	// we have 1 fewer nodes available than the number of values it can contain.
	maxNodes = common.Clamp(maxNodes, 1, DT_MAX_POOL_SIZE)
	hashSize = int32(common.NextPow2(uint32(max(hashSize, 1))))
	p := &DtNodePool{
		m_maxNodes: maxNodes,
		m_hashSize: hashSize,
		m_nodes:    make([]DtNode, maxNodes),
		m_next:     make([]DtNodeIndex, maxNodes),
		m_first:    make([]DtNodeIndex, hashSize),
	}
	for i := range p.m_nodes {
		p.m_nodes[i].poolIdx = uint32(i) + 1
	}
	p.Clear()
	return p
}

func (p *DtNodePool) Clear() {
	for i := range p.m_first {
		p.m_first[i] = DT_NULL_IDX
	}
	p.m_nodeCount = 0
}

// GetNodeIdx returns the 1-based index of node, 0 for nil.
func (p *DtNodePool) GetNodeIdx(node *DtNode) uint32 {
	if node == nil {
		return 0
	}
	return node.poolIdx
}

func (p *DtNodePool) GetNodeAtIdx(idx uint32) *DtNode {
	if idx == 0 || idx > uint32(p.m_nodeCount) {
		return nil
	}
	return &p.m_nodes[idx-1]
}

func (p *DtNodePool) GetMaxNodes() int32  { return p.m_maxNodes }
func (p *DtNodePool) GetHashSize() int32  { return p.m_hashSize }
func (p *DtNodePool) GetNodeCount() int32 { return p.m_nodeCount }

func (p *DtNodePool) bucket(id DtPolyRef) uint32 { return dtHashRef(id) & uint32(p.m_hashSize-1) }

// FindNodes returns up to maxNodes nodes of id, one per state.
func (p *DtNodePool) FindNodes(id DtPolyRef, maxNodes int) []*DtNode {
	var nodes []*DtNode
	for i := p.m_first[p.bucket(id)]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id {
			if len(nodes) >= maxNodes {
				break
			}
			nodes = append(nodes, &p.m_nodes[i])
		}
	}
	return nodes
}

func (p *DtNodePool) FindNode(id DtPolyRef, state uint8) *DtNode {
	for i := p.m_first[p.bucket(id)]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id && p.m_nodes[i].State == state {
			return &p.m_nodes[i]
		}
	}
	return nil
}

// GetNode finds or allocates the node for (id, state). It returns nil once the
// pool is exhausted.
func (p *DtNodePool) GetNode(id DtPolyRef, state uint8) *DtNode {
	bucket := p.bucket(id)
	for i := p.m_first[bucket]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id && p.m_nodes[i].State == state {
			return &p.m_nodes[i]
		}
	}

	if p.m_nodeCount >= p.m_maxNodes {
		return nil
	}

	i := DtNodeIndex(p.m_nodeCount)
	p.m_nodeCount++

	// Init node
	node := &p.m_nodes[i]
	node.Pidx = 0
	node.Cost = 0
	node.Total = 0
	node.Id = id
	node.State = state
	node.Flags = 0
	node.heapIndex = -1

	p.m_next[i] = p.m_first[bucket]
	p.m_first[bucket] = i
	return node
}
