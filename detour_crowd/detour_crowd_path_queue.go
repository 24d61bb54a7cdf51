package detour_crowd

import (
	"fmt"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/common/logger"
	"github.com/gorustyt/navquery/detour"
	"go.uber.org/multierr"
)

type DtPathQueueRef uint32

const (
	DT_PATHQ_INVALID DtPathQueueRef = 0

	DT_PATHQ_MAX_QUEUE      = 8
	DT_PATHQ_MAX_KEEP_ALIVE = 2 // in update ticks.
)

// DtPathQueueConfig sizes a DtPathQueue.
type DtPathQueueConfig struct {
	MaxPathSize    int   `json:"maxPathSize"`    // polygons kept per finished request
	MaxSearchNodes int32 `json:"maxSearchNodes"` // node pool of the queue's own query
	KeepAlive      int   `json:"keepAlive"`      // updates a finished result waits for collection
}

func DefaultDtPathQueueConfig() DtPathQueueConfig {
	return DtPathQueueConfig{
		MaxPathSize:    256,
		MaxSearchNodes: 4096,
		KeepAlive:      DT_PATHQ_MAX_KEEP_ALIVE,
	}
}

func (c *DtPathQueueConfig) validate() (err error) {
	if c.MaxPathSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: maxPathSize %d", detour.ErrInvalidParam, c.MaxPathSize))
	}
	if c.MaxSearchNodes <= 0 || c.MaxSearchNodes > detour.DT_MAX_POOL_SIZE {
		err = multierr.Append(err, fmt.Errorf("%w: maxSearchNodes %d", detour.ErrInvalidParam, c.MaxSearchNodes))
	}
	if c.KeepAlive < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: keepAlive %d", detour.ErrInvalidParam, c.KeepAlive))
	}
	return err
}

type dtPathQuery struct {
	ref DtPathQueueRef
	seq uint64 // request order, handles wrap
	/// Path find start and end location.
	startPos, endPos common.Vec3
	startRef, endRef detour.DtPolyRef
	/// Result.
	path []detour.DtPolyRef
	/// State.
	status    detour.DtStatus
	keepAlive int
	filter    detour.DtQueryFilter
}

// DtPathQueue runs the path requests of many agents on one DtNavMeshQuery, a
// bounded number of search iterations per Update. Requests are serviced oldest
// first whatever slot they landed in, and only one of them searches at a time.
type DtPathQueue struct {
	m_queue       [DT_PATHQ_MAX_QUEUE]dtPathQuery
	m_nextHandle  DtPathQueueRef
	m_nextSeq     uint64
	m_maxPathSize int
	m_keepAlive   int
	m_navquery    *detour.DtNavMeshQuery
}

func NewDtPathQueue(nav *detour.DtNavMesh, cfg DtPathQueueConfig) (*DtPathQueue, error) {
	if nav == nil {
		return nil, fmt.Errorf("%w: nil navmesh", detour.ErrInvalidParam)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	navquery, status := detour.NewDtNavMeshQuery(nav, cfg.MaxSearchNodes)
	if status.Failed() {
		return nil, status.Err()
	}
	return &DtPathQueue{
		m_nextHandle:  1,
		m_maxPathSize: cfg.MaxPathSize,
		m_keepAlive:   cfg.KeepAlive,
		m_navquery:    navquery,
	}, nil
}

// GetNavQuery returns the query the requests run on. Running another search on
// it abandons the request in progress.
func (d *DtPathQueue) GetNavQuery() *detour.DtNavMeshQuery { return d.m_navquery }

// Update advances the pending requests by at most maxIters search iterations
// in total and returns the iterations spent. Finished results age by one
// update even when maxIters is zero.
func (d *DtPathQueue) Update(maxIters int) int {
	for i := range d.m_queue {
		q := &d.m_queue[i]
		if q.ref == DT_PATHQ_INVALID || !(q.status.Succeed() || q.status.Failed()) {
			continue
		}
		// If the path result has not been read in few frames, free the slot.
		q.keepAlive++
		if q.keepAlive > d.m_keepAlive {
			logger.Debug("path queue: recycle uncollected request %d (%v)", q.ref, q.status)
			d.free(q)
		}
	}

	// Update path request until there is nothing to update
	// or upto maxIters pathfinder iterations has been consumed.
	iterCount := maxIters
	for iterCount > 0 {
		q := d.oldestPending()
		if q == nil {
			break
		}

		// Handle query start.
		if q.status == 0 {
			q.status = d.m_navquery.InitSlicedFindPath(q.startRef, q.endRef, q.startPos, q.endPos, q.filter, 0)
		}
		// Handle query in progress.
		if q.status.InProgress() {
			var iters int
			iters, q.status = d.m_navquery.UpdateSlicedFindPath(iterCount)
			iterCount -= iters
		}
		if q.status.Succeed() {
			q.path, q.status = d.m_navquery.FinalizeSlicedFindPath(d.m_maxPathSize)
		}
		if q.status.Failed() {
			logger.Debug("path queue: request %d %#x -> %#x failed: %v", q.ref, q.startRef, q.endRef, q.status)
		}
		if q.status.InProgress() {
			// Budget spent, the search resumes next update.
			break
		}
	}
	return maxIters - iterCount
}

// oldestPending returns the earliest request that has not finished yet.
func (d *DtPathQueue) oldestPending() *dtPathQuery {
	var oldest *dtPathQuery
	for i := range d.m_queue {
		q := &d.m_queue[i]
		if q.ref == DT_PATHQ_INVALID || (q.status != 0 && !q.status.InProgress()) {
			continue
		}
		if oldest == nil || q.seq < oldest.seq {
			oldest = q
		}
	}
	return oldest
}

// Request queues a path search and returns its handle, or DT_PATHQ_INVALID
// when every slot is taken. The filter is used when the search runs.
func (d *DtPathQueue) Request(startRef, endRef detour.DtPolyRef,
	startPos, endPos common.Vec3,
	filter detour.DtQueryFilter) DtPathQueueRef {
	// Find empty slot
	slot := -1
	for i := range d.m_queue {
		if d.m_queue[i].ref == DT_PATHQ_INVALID {
			slot = i
			break
		}
	}
	// Could not find slot.
	if slot == -1 {
		logger.Debug("path queue: full, request %#x -> %#x rejected", startRef, endRef)
		return DT_PATHQ_INVALID
	}

	ref := d.m_nextHandle
	d.m_nextHandle++
	if d.m_nextHandle == DT_PATHQ_INVALID {
		d.m_nextHandle++
	}

	d.m_nextSeq++
	d.m_queue[slot] = dtPathQuery{
		ref:      ref,
		seq:      d.m_nextSeq,
		startPos: startPos,
		startRef: startRef,
		endPos:   endPos,
		endRef:   endRef,
		filter:   filter,
	}
	return ref
}

func (d *DtPathQueue) find(ref DtPathQueueRef) *dtPathQuery {
	if ref == DT_PATHQ_INVALID {
		return nil
	}
	for i := range d.m_queue {
		if d.m_queue[i].ref == ref {
			return &d.m_queue[i]
		}
	}
	return nil
}

func (d *DtPathQueue) free(q *dtPathQuery) {
	*q = dtPathQuery{}
}

// GetRequestStatus returns DT_IN_PROGRESS while the request waits or searches,
// its final status once done and DT_FAILURE for unknown or recycled handles.
func (d *DtPathQueue) GetRequestStatus(ref DtPathQueueRef) detour.DtStatus {
	q := d.find(ref)
	if q == nil {
		return detour.DT_FAILURE
	}
	if q.status == 0 {
		return detour.DT_IN_PROGRESS
	}
	return q.status
}

// GetPathResult hands out the path of a finished request and frees its slot.
// A request that is still running keeps its slot and reports DT_IN_PROGRESS.
func (d *DtPathQueue) GetPathResult(ref DtPathQueueRef, maxPath int) ([]detour.DtPolyRef, detour.DtStatus) {
	q := d.find(ref)
	if q == nil {
		return nil, detour.DT_FAILURE | detour.DT_INVALID_PARAM
	}
	if maxPath <= 0 {
		return nil, detour.DT_FAILURE | detour.DT_INVALID_PARAM
	}
	if q.status == 0 || q.status.InProgress() {
		return nil, detour.DT_IN_PROGRESS
	}

	status := q.status
	path := q.path
	// Free request for reuse.
	d.free(q)
	if status.Failed() {
		return nil, status
	}

	details := status & detour.DT_STATUS_DETAIL_MASK
	if len(path) > maxPath {
		path = path[:maxPath]
		details |= detour.DT_BUFFER_TOO_SMALL
	}
	return path, details | detour.DT_SUCCESS
}

// Pending returns the number of slots in use.
func (d *DtPathQueue) Pending() int {
	n := 0
	for i := range d.m_queue {
		if d.m_queue[i].ref != DT_PATHQ_INVALID {
			n++
		}
	}
	return n
}
