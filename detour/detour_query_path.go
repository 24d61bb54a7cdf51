package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/common/logger"
)

// initSearch validates the request, stores it in qd and seeds the open list
// with the start node. The node pool is only touched once the input is valid.
func (q *DtNavMeshQuery) initSearch(qd *dtQueryData, startRef, endRef DtPolyRef,
	startPos, endPos common.Vec3, filter DtQueryFilter, options int) DtStatus {
	*qd = dtQueryData{
		status:          DT_FAILURE,
		startRef:        startRef,
		endRef:          endRef,
		startPos:        startPos,
		endPos:          endPos,
		filter:          filter,
		options:         options,
		raycastLimitSqr: math.MaxFloat32,
	}

	// Validate input
	if !q.validSearchInput(startRef, endRef, startPos, endPos, filter) {
		qd.status = DT_FAILURE | DT_INVALID_PARAM
		return qd.status
	}

	// trade quality with performance?
	if options&DT_FINDPATH_ANY_ANGLE != 0 {
		// limiting to several times the character radius yields nice results. It is not sensitive
		// so it is enough to compute it from the first tile.
		tile, _, _ := q.m_nav.GetTileAndPolyByRef(startRef)
		agentRadius := tile.Header.WalkableRadius
		qd.raycastLimitSqr = common.Sqr(agentRadius * DT_RAY_CAST_LIMIT_PROPORTIONS)
	}

	if startRef == endRef {
		qd.status = DT_SUCCESS
		return qd.status
	}

	q.m_nodePool.Clear()
	q.m_openList.Reset()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = startPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = common.Vdist(startPos, endPos) * H_SCALE
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Offer(startNode)

	qd.status = DT_IN_PROGRESS
	qd.lastBestNode = startNode
	qd.lastBestNodeCost = startNode.Total
	return qd.status
}

func (q *DtNavMeshQuery) validSearchInput(startRef, endRef DtPolyRef, startPos, endPos common.Vec3, filter DtQueryFilter) bool {
	return q.m_nav.IsValidPolyRef(startRef) && q.m_nav.IsValidPolyRef(endRef) &&
		common.Visfinite(startPos) && common.Visfinite(endPos) && filter != nil
}

// expandSearch runs at most maxIter A* iterations of qd. On return qd.status is
// DT_IN_PROGRESS when the budget ran out, DT_SUCCESS when the goal was reached,
// DT_SUCCESS|DT_PARTIAL_RESULT when the frontier was exhausted without reaching
// it and DT_FAILURE|DT_STALE_REF when a visited polygon disappeared.
func (q *DtNavMeshQuery) expandSearch(qd *dtQueryData, maxIter int) (doneIters int) {
	anyAngle := qd.options&DT_FINDPATH_ANY_ANGLE != 0

	for doneIters < maxIter && !q.m_openList.Empty() {
		doneIters++

		// Remove node from open list and put it in closed list.
		bestNode := q.m_openList.Poll()
		bestNode.Flags &^= DT_NODE_OPEN
		bestNode.Flags |= DT_NODE_CLOSED

		// Reached the goal, stop searching.
		if bestNode.Id == qd.endRef {
			qd.lastBestNode = bestNode
			qd.status = DT_SUCCESS | (qd.status & DT_STATUS_DETAIL_MASK)
			return doneIters
		}

		// Get current poly and tile.
		bestRef := bestNode.Id
		bestTile, bestPoly, status := q.m_nav.GetTileAndPolyByRef(bestRef)
		if status.Failed() {
			// The polygon has disappeared during the sliced query, fail.
			qd.status = DT_FAILURE | DT_STALE_REF
			return doneIters
		}

		// Get parent and grand parent poly and tile.
		var parentRef, grandpaRef DtPolyRef
		var parentTile *DtMeshTile
		var parentPoly *DtPoly
		var parentNode *DtNode
		if bestNode.Pidx != 0 {
			parentNode = q.m_nodePool.GetNodeAtIdx(bestNode.Pidx)
			parentRef = parentNode.Id
			if parentNode.Pidx != 0 {
				grandpaRef = q.m_nodePool.GetNodeAtIdx(parentNode.Pidx).Id
			}
		}
		if parentRef != 0 {
			parentTile, parentPoly, status = q.m_nav.GetTileAndPolyByRef(parentRef)
			if status.Failed() || (grandpaRef != 0 && !q.m_nav.IsValidPolyRef(grandpaRef)) {
				// The polygon has disappeared during the sliced query, fail.
				qd.status = DT_FAILURE | DT_STALE_REF
				return doneIters
			}
		}

		// decide whether to test raycast to previous nodes
		tryLOS := anyAngle && parentRef != 0 &&
			common.VdistSqr(parentNode.Pos, bestNode.Pos) < qd.raycastLimitSqr

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref

			// Skip invalid ids and do not expand back to where we came from.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Get neighbour poly and tile.
			// The API input has been checked already, skip checking internal data.
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)
			if !qd.filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			// deal explicitly with crossing tile boundaries
			var crossSide uint8
			if link.Side != 0xff {
				crossSide = link.Side >> 1
			}

			// get the node
			neighbourNode := q.m_nodePool.GetNode(neighbourRef, crossSide)
			if neighbourNode == nil {
				qd.status |= DT_OUT_OF_NODES
				continue
			}

			// do not expand to nodes that were already visited from the same parent
			if anyAngle && neighbourNode.Pidx != 0 && neighbourNode.Pidx == bestNode.Pidx {
				continue
			}

			// If the node is visited the first time, calculate node position.
			if neighbourNode.Flags == 0 {
				neighbourNode.Pos, _ = q.getEdgeMidPointOf(bestRef, bestPoly, bestTile,
					neighbourRef, neighbourPoly, neighbourTile)
			}

			// Calculate cost and heuristic.
			var cost, heuristic float32

			// raycast parent
			foundShortCut := false
			if tryLOS {
				hit, rayStatus := q.Raycast(parentRef, parentNode.Pos, neighbourNode.Pos, qd.filter,
					DT_RAYCAST_USE_COSTS, grandpaRef, 0)
				if !rayStatus.Failed() && !hit.Blocked() {
					// shortcut found using raycast. Using shorter cost instead
					foundShortCut = true
					cost = parentNode.Cost + hit.PathCost
				}
			}
			if !foundShortCut {
				// No shortcut found.
				curCost := qd.filter.GetCost(bestNode.Pos, neighbourNode.Pos,
					parentRef, parentTile, parentPoly,
					bestRef, bestTile, bestPoly,
					neighbourRef, neighbourTile, neighbourPoly)
				cost = bestNode.Cost + curCost
			}

			// Special case for last node.
			if neighbourRef == qd.endRef {
				// Cost
				endCost := qd.filter.GetCost(neighbourNode.Pos, qd.endPos,
					bestRef, bestTile, bestPoly,
					neighbourRef, neighbourTile, neighbourPoly,
					0, nil, nil)
				cost += endCost
				heuristic = 0
			} else {
				heuristic = common.Vdist(neighbourNode.Pos, qd.endPos) * H_SCALE
			}

			total := cost + heuristic

			// The node is already in open list and the new result is worse, skip.
			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}
			// The node is already visited and process, and the new result is worse, skip.
			if neighbourNode.Flags&DT_NODE_CLOSED != 0 && total >= neighbourNode.Total {
				continue
			}

			// Add or update the node.
			if foundShortCut {
				neighbourNode.Pidx = bestNode.Pidx
			} else {
				neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			}
			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &^= DT_NODE_CLOSED | DT_NODE_PARENT_DETACHED
			neighbourNode.Cost = cost
			neighbourNode.Total = total
			if foundShortCut {
				neighbourNode.Flags |= DT_NODE_PARENT_DETACHED
			}

			if neighbourNode.Flags&DT_NODE_OPEN != 0 {
				// Already in open, update node location.
				q.m_openList.Update(neighbourNode)
			} else {
				// Put the node in open list.
				neighbourNode.Flags |= DT_NODE_OPEN
				q.m_openList.Offer(neighbourNode)
			}

			// Update nearest node to target so far.
			if heuristic < qd.lastBestNodeCost {
				qd.lastBestNodeCost = heuristic
				qd.lastBestNode = neighbourNode
			}
		}
	}

	// Exhausted all nodes, but could not find path.
	if q.m_openList.Empty() {
		qd.status = DT_SUCCESS | DT_PARTIAL_RESULT | (qd.status & DT_STATUS_DETAIL_MASK)
	}
	return doneIters
}

// abandonSlicedQuery drops an unfinished sliced query whose nodes are about to
// be reused.
func (q *DtNavMeshQuery) abandonSlicedQuery(reason string) bool {
	if !q.m_query.status.InProgress() {
		return false
	}
	logger.Debug("abandon sliced path query %#x -> %#x: %s", q.m_query.startRef, q.m_query.endRef, reason)
	q.m_query = dtQueryData{status: DT_FAILURE | DT_QUERY_ABANDONED}
	return true
}

// / @par
// /
// / If the end polygon cannot be reached through the navigation graph,
// / the last polygon in the path will be the nearest the end polygon and the
// / status carries #DT_PARTIAL_RESULT.
// /
// / If the path array is to small to hold the full result, it will be filled as
// / far as possible from the start polygon toward the end polygon.
// /
// / The start and end positions are used to calculate traversal costs.
// / (The y-values impact the result.)
// /
// / An unfinished sliced query on the same object is abandoned.
func (q *DtNavMeshQuery) FindPath(startRef, endRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, maxPath int) ([]DtPolyRef, DtStatus) {
	if maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	var qd dtQueryData
	if startRef != endRef && q.validSearchInput(startRef, endRef, startPos, endPos, filter) {
		q.abandonSlicedQuery("synchronous search")
	}
	status := q.initSearch(&qd, startRef, endRef, startPos, endPos, filter, 0)
	if status.Failed() {
		return nil, status
	}
	if startRef == endRef {
		return []DtPolyRef{startRef}, DT_SUCCESS
	}

	q.expandSearch(&qd, math.MaxInt)
	if qd.status.Failed() {
		return nil, qd.status
	}

	path, pathStatus := q.getPathToNode(qd.lastBestNode, maxPath)
	return path, qd.status | (pathStatus & DT_STATUS_DETAIL_MASK)
}

// getPathToNode walks the parent chain of endNode. When the chain is longer
// than maxPath the polygons nearest the start are kept.
func (q *DtNavMeshQuery) getPathToNode(endNode *DtNode, maxPath int) ([]DtPolyRef, DtStatus) {
	// Find the length of the entire path.
	length := 0
	for curNode := endNode; curNode != nil; curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx) {
		length++
	}

	// If the path cannot be fully stored then advance to the last node we will be able to store.
	curNode := endNode
	writeCount := length
	for ; writeCount > maxPath; writeCount-- {
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	// Write path
	path := make([]DtPolyRef, writeCount)
	for i := writeCount - 1; i >= 0; i-- {
		path[i] = curNode.Id
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	if length > maxPath {
		return path, DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return path, DT_SUCCESS
}

// / @par
// /
// / @warning Calling any non-slice methods before calling FinalizeSlicedFindPath()
// / or FinalizeSlicedFindPathPartial() may result in corrupted data!
// /
// / The @p filter pointer is stored and used for the duration of the sliced
// / path query.
// /
// / Starting a new query while another one is in progress abandons the old one;
// / the returned status then carries #DT_QUERY_ABANDONED.
func (q *DtNavMeshQuery) InitSlicedFindPath(startRef, endRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, options int) DtStatus {
	abandoned := q.abandonSlicedQuery("new sliced query")
	status := q.initSearch(&q.m_query, startRef, endRef, startPos, endPos, filter, options)
	if abandoned {
		status |= DT_QUERY_ABANDONED
	}
	return status
}

// / Updates an in-progress sliced path query.
// /  @param[in]		maxIter		The maximum number of iterations to perform.
// /  @param[out]	doneIters	The actual number of iterations completed. [opt]
// / @returns The status flags for the query.
func (q *DtNavMeshQuery) UpdateSlicedFindPath(maxIter int) (doneIters int, status DtStatus) {
	if !q.m_query.status.InProgress() {
		return 0, q.m_query.status
	}

	// Make sure the request is still valid.
	if !q.m_nav.IsValidPolyRef(q.m_query.startRef) || !q.m_nav.IsValidPolyRef(q.m_query.endRef) {
		logger.Debug("sliced path query %#x -> %#x: endpoint went stale", q.m_query.startRef, q.m_query.endRef)
		q.m_query.status = DT_FAILURE | DT_STALE_REF
		return 0, q.m_query.status
	}

	doneIters = q.expandSearch(&q.m_query, maxIter)
	if q.m_query.status.Detail(DT_STALE_REF) {
		logger.Debug("sliced path query %#x -> %#x: visited polygon went stale", q.m_query.startRef, q.m_query.endRef)
	}
	return doneIters, q.m_query.status
}

// / Finalizes and returns the results of a sliced path query.
// /  @param[in]		maxPath		The max number of polygons the path array can hold. [Limit: >= 1]
// / @returns The path and the status flags for the query.
func (q *DtNavMeshQuery) FinalizeSlicedFindPath(maxPath int) ([]DtPolyRef, DtStatus) {
	if maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	qd := q.m_query
	// Reset query.
	q.m_query = dtQueryData{}

	if qd.status == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if qd.status.Failed() {
		return nil, qd.status
	}

	if qd.startRef == qd.endRef {
		// Special case: the search starts and ends at same poly.
		return []DtPolyRef{qd.startRef}, DT_SUCCESS
	}

	details := qd.status & DT_STATUS_DETAIL_MASK
	if qd.lastBestNode.Id != qd.endRef {
		details |= DT_PARTIAL_RESULT
	}
	path, status := q.finalizePathFrom(qd.lastBestNode, qd.filter, maxPath)
	return path, DT_SUCCESS | details | (status & DT_STATUS_DETAIL_MASK)
}

// / Finalizes and returns the results of an incomplete sliced path query, returning the path to the furthest
// / polygon on the existing path that was visited during the search.
// /  @param[in]		existing		An array of polygon references for the existing path.
// /  @param[in]		maxPath			The max number of polygons the @p path array can hold. [Limit: >= 1]
// / @returns The path and the status flags for the query.
func (q *DtNavMeshQuery) FinalizeSlicedFindPathPartial(existing []DtPolyRef, maxPath int) ([]DtPolyRef, DtStatus) {
	if len(existing) == 0 || maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	qd := q.m_query
	// Reset query.
	q.m_query = dtQueryData{}

	if qd.status == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if qd.status.Failed() {
		return nil, qd.status
	}

	if qd.startRef == qd.endRef {
		// Special case: the search starts and ends at same poly.
		return []DtPolyRef{qd.startRef}, DT_SUCCESS
	}

	details := qd.status & DT_STATUS_DETAIL_MASK

	// Find furthest existing node that was visited.
	var node *DtNode
	for i := len(existing) - 1; i >= 0; i-- {
		if nodes := q.m_nodePool.FindNodes(existing[i], 1); len(nodes) > 0 {
			node = nodes[0]
			break
		}
	}
	// If none of the existing nodes was visited, use the best node so far.
	if node == nil {
		details |= DT_PARTIAL_RESULT
		node = qd.lastBestNode
	}

	path, status := q.finalizePathFrom(node, qd.filter, maxPath)
	return path, DT_SUCCESS | details | (status & DT_STATUS_DETAIL_MASK)
}

// finalizePathFrom reverses the parent chain ending at endNode and writes the
// corridor, re-expanding raycast shortcuts into the polygons they cross.
func (q *DtNavMeshQuery) finalizePathFrom(endNode *DtNode, filter DtQueryFilter, maxPath int) ([]DtPolyRef, DtStatus) {
	// Reverse the path.
	var prev *DtNode
	node := endNode
	var prevRay uint8
	for node != nil {
		next := q.m_nodePool.GetNodeAtIdx(node.Pidx)
		node.Pidx = q.m_nodePool.GetNodeIdx(prev)
		prev = node
		nextRay := node.Flags & DT_NODE_PARENT_DETACHED // keep track of whether parent is not adjacent (i.e. due to raycast shortcut)
		node.Flags = (node.Flags &^ DT_NODE_PARENT_DETACHED) | prevRay // and store it in the reversed path's node
		prevRay = nextRay
		node = next
	}

	// Store path
	status := DT_SUCCESS
	path := make([]DtPolyRef, 0, min(maxPath, 64))
	for node = prev; node != nil; {
		next := q.m_nodePool.GetNodeAtIdx(node.Pidx)
		if node.Flags&DT_NODE_PARENT_DETACHED != 0 && next != nil {
			hit, rayStatus := q.Raycast(node.Id, node.Pos, next.Pos, filter, 0, 0, maxPath-len(path))
			if rayStatus.Failed() {
				path = append(path, node.Id)
			} else {
				path = append(path, hit.Path...)
				// raycast ends on poly boundary and the path might include the next poly boundary.
				if n := len(path); n > 0 && path[n-1] == next.Id {
					path = path[:len(path)-1] // remove to avoid duplicates
				}
			}
			if rayStatus.Detail(DT_BUFFER_TOO_SMALL) || len(path) >= maxPath {
				status |= DT_BUFFER_TOO_SMALL
				break
			}
		} else {
			path = append(path, node.Id)
			if len(path) >= maxPath {
				if next != nil {
					status |= DT_BUFFER_TOO_SMALL
				}
				break
			}
		}
		node = next
	}
	return path, status
}
