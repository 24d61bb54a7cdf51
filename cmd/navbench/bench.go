package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/common/logger"
	"github.com/gorustyt/navquery/detour"
	"github.com/gorustyt/navquery/detour_crowd"
)

const (
	agentMaxCorners     = 4
	agentLookAhead      = 8
	agentArriveDist     = 0.05
	agentOptimizeRange  = 6
	boundaryUpdateRange = 0.25
)

type agentState int

const (
	agentIdle agentState = iota
	agentWaiting
	agentMoving
)

type benchAgent struct {
	id        int
	state     agentState
	req       detour_crowd.DtPathQueueRef
	target    common.Vec3
	targetRef detour.DtPolyRef
	corridor  *detour_crowd.DtPathCorridor
	boundary  *detour_crowd.DtLocalBoundary
}

// BenchResult counts what happened during a run.
type BenchResult struct {
	Ticks       int
	Requests    int
	Rejected    int // queue full
	Completed   int
	Partial     int
	Failed      int
	Iterations  int
	Arrived     int
	Replanned   int // corridors invalidated by tile reloads
	TileReloads int
	// Nearest wall distance seen by any agent, from its local boundary.
	MinWallDist float32
	Elapsed     time.Duration
}

type bench struct {
	cfg      *Config
	rng      *rand.Rand
	world    *detour.DtGridWorld
	nav      *detour.DtNavMesh
	navquery *detour.DtNavMeshQuery
	queue    *detour_crowd.DtPathQueue
	filter   *detour.DtStandardQueryFilter
	cells    []detour.DtGridCell
	agents   []*benchAgent
	res      BenchResult
}

func newBench(cfg *Config) (*bench, error) {
	b := &bench{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.World.Seed)),
		filter: detour.NewDtQueryFilter(),
	}
	b.res.MinWallDist = cfg.Agents.CollisionRange

	w, cells := generateWorld(cfg.World, b.rng)
	if len(cells) < cfg.Agents.Count {
		return nil, fmt.Errorf("%w: %d walkable cells for %d agents", errBadConfig, len(cells), cfg.Agents.Count)
	}
	b.world, b.cells = w, cells

	nav, err := w.Build()
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	b.nav = nav
	if b.queue, err = detour_crowd.NewDtPathQueue(nav, cfg.Queue); err != nil {
		return nil, fmt.Errorf("path queue: %w", err)
	}
	navquery, status := detour.NewDtNavMeshQuery(nav, 2048)
	if status.Failed() {
		return nil, fmt.Errorf("nav query: %w", status.Err())
	}
	b.navquery = navquery

	for i := 0; i < cfg.Agents.Count; i++ {
		c := b.cells[b.rng.Intn(len(b.cells))]
		ag := &benchAgent{
			id:       i,
			corridor: detour_crowd.NewDtPathCorridor(cfg.Agents.MaxPath),
			boundary: detour_crowd.NewDtLocalBoundary(),
		}
		ag.corridor.Reset(w.PolyRefAt(nav, c), w.CellCenter(c))
		b.agents = append(b.agents, ag)
	}
	logger.Info("world %dx%d tiles, %d walkable cells, %d agents",
		cfg.World.TilesX, cfg.World.TilesZ, len(b.cells), len(b.agents))
	return b, nil
}

// generateWorld blocks random cells of a fresh grid world and returns the
// walkable ones.
func generateWorld(cfg WorldConfig, rng *rand.Rand) (*detour.DtGridWorld, []detour.DtGridCell) {
	w := detour.NewDtGridWorld(cfg.TilesX, cfg.TilesZ, cfg.CellsPerTile)
	sizeX := int(cfg.TilesX) * cfg.CellsPerTile
	sizeZ := int(cfg.TilesZ) * cfg.CellsPerTile
	var cells []detour.DtGridCell
	for z := 0; z < sizeZ; z++ {
		for x := 0; x < sizeX; x++ {
			c := detour.DtGridCell{X: x, Z: z}
			if rng.Float64() < cfg.BlockedRatio {
				w.Block(c)
				continue
			}
			cells = append(cells, c)
		}
	}
	return w, cells
}

// ExportWorld builds the world the bench would run on and writes it as a
// navmesh set.
func ExportWorld(cfg *Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	w, _ := generateWorld(cfg.World, rand.New(rand.NewSource(cfg.World.Seed)))
	nav, err := w.Build()
	if err != nil {
		return fmt.Errorf("build world: %w", err)
	}
	return detour.SaveNavMeshSet(out, nav)
}

// RunBench moves the configured agents between random cells for cfg.Ticks
// ticks, planning through one shared path queue.
func RunBench(ctx context.Context, cfg *Config) (*BenchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := newBench(cfg)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	for tick := 0; tick < cfg.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return &b.res, err
		}
		if err := b.tick(tick); err != nil {
			return &b.res, err
		}
		b.res.Ticks++
	}
	b.res.Elapsed = time.Since(start)
	return &b.res, nil
}

func (b *bench) tick(tick int) error {
	if every := b.cfg.World.ReloadEvery; every > 0 && tick > 0 && tick%every == 0 {
		if err := b.reloadTile(); err != nil {
			return err
		}
	}
	for _, ag := range b.agents {
		if ag.state == agentIdle {
			b.request(ag)
		}
	}
	b.res.Iterations += b.queue.Update(b.cfg.IterBudget)
	for _, ag := range b.agents {
		switch ag.state {
		case agentWaiting:
			b.collect(ag)
		case agentMoving:
			b.move(ag, tick)
		}
	}
	return nil
}

func (b *bench) request(ag *benchAgent) {
	if !b.ensureOnMesh(ag) {
		return
	}
	c := b.cells[b.rng.Intn(len(b.cells))]
	ref := b.world.PolyRefAt(b.nav, c)
	if ref == 0 || ref == ag.corridor.GetFirstPoly() {
		return
	}
	req := b.queue.Request(ag.corridor.GetFirstPoly(), ref, ag.corridor.GetPos(), b.world.CellCenter(c), b.filter)
	if req == detour_crowd.DT_PATHQ_INVALID {
		b.res.Rejected++
		return
	}
	b.res.Requests++
	ag.req = req
	ag.target = b.world.CellCenter(c)
	ag.targetRef = ref
	ag.state = agentWaiting
}

func (b *bench) collect(ag *benchAgent) {
	status := b.queue.GetRequestStatus(ag.req)
	if status.InProgress() {
		return
	}
	path, status := b.queue.GetPathResult(ag.req, ag.corridor.GetMaxPath())
	ag.req = detour_crowd.DT_PATHQ_INVALID
	if status.Failed() || len(path) == 0 || path[0] != ag.corridor.GetFirstPoly() {
		logger.Debug("agent %d: path request failed: %v", ag.id, status)
		b.res.Failed++
		ag.state = agentIdle
		return
	}
	b.res.Completed++

	target := ag.target
	if last := path[len(path)-1]; last != ag.targetRef {
		// Head for the nearest point of the best polygon reached.
		b.res.Partial++
		if p, _, cs := b.navquery.ClosestPointOnPoly(last, target); cs.Succeed() {
			target = p
		}
	}
	ag.corridor.SetCorridor(target, path)
	ag.state = agentMoving
}

func (b *bench) move(ag *benchAgent, tick int) {
	c := ag.corridor
	if !c.IsValid(agentLookAhead, b.navquery, b.filter) {
		b.res.Replanned++
		ag.state = agentIdle
		if b.ensureOnMesh(ag) {
			c.TrimInvalidPath(c.GetFirstPoly(), c.GetPos(), b.navquery, b.filter)
		}
		return
	}

	if every := b.cfg.Agents.OptimizeEvery; every > 0 && (tick+ag.id)%every == 0 {
		c.OptimizePathTopology(b.navquery, b.filter)
	}

	corners := c.FindCorners(agentMaxCorners, b.navquery, b.filter)
	if len(corners) == 0 {
		// The end corner is pruned once the agent stands on it.
		if common.Vdist2D(c.GetPos(), c.GetTarget()) < agentArriveDist {
			b.res.Arrived++
		}
		ag.state = agentIdle
		return
	}
	next := corners[0]
	if len(corners) > 1 {
		c.OptimizePathVisibility(corners[len(corners)-1].Pos, agentOptimizeRange, b.navquery, b.filter)
	}

	pos := c.GetPos()
	dist := common.Vdist2D(pos, next.Pos)
	if next.Flags&detour.DT_STRAIGHTPATH_OFFMESH_CONNECTION != 0 && dist < b.cfg.Agents.Speed {
		if _, _, _, ok := c.MoveOverOffmeshConnection(next.Ref, b.navquery); ok {
			return
		}
	}
	if next.Flags&detour.DT_STRAIGHTPATH_END != 0 && dist < agentArriveDist {
		b.res.Arrived++
		ag.state = agentIdle
		return
	}

	step := min(b.cfg.Agents.Speed, dist)
	if dist > 0 {
		c.MovePosition(common.Vmad(pos, next.Pos.Sub(pos), step/dist), b.navquery, b.filter)
	}
	b.updateBoundary(ag)
}

func (b *bench) updateBoundary(ag *benchAgent) {
	pos := ag.corridor.GetPos()
	r := b.cfg.Agents.CollisionRange
	if common.Vdist2DSqr(pos, ag.boundary.GetCenter()) > common.Sqr(boundaryUpdateRange*r) ||
		!ag.boundary.IsValid(b.navquery, b.filter) {
		ag.boundary.Update(ag.corridor.GetFirstPoly(), pos, r, b.navquery, b.filter)
	}
	if ag.boundary.GetSegmentCount() > 0 {
		b.res.MinWallDist = min(b.res.MinWallDist, common.Sqrtf(ag.boundary.GetSegmentDistSqr(0)))
	}
}

// ensureOnMesh moves an agent whose first polygon went stale onto the
// nearest polygon.
func (b *bench) ensureOnMesh(ag *benchAgent) bool {
	c := ag.corridor
	if b.navquery.IsValidPolyRef(c.GetFirstPoly(), b.filter) {
		return true
	}
	ref, pt, _, status := b.navquery.FindNearestPoly(c.GetPos(), common.Vec3{2, 4, 2}, b.filter)
	if status.Failed() || ref == 0 {
		return false
	}
	c.Reset(ref, pt)
	return true
}

// reloadTile takes a random tile out of the mesh, round-trips it through the
// tile codec and adds it back. Every reference into it goes stale.
func (b *bench) reloadTile() error {
	tx := int32(b.rng.Intn(int(b.cfg.World.TilesX)))
	tz := int32(b.rng.Intn(int(b.cfg.World.TilesZ)))
	ref := b.nav.GetTileRefAt(tx, tz, 0)
	if ref == 0 {
		return nil
	}
	data, status := b.nav.RemoveTile(ref)
	if status.Failed() {
		return fmt.Errorf("remove tile (%d,%d): %w", tx, tz, status.Err())
	}
	buf, err := detour.MarshalTile(data)
	if err != nil {
		return fmt.Errorf("encode tile (%d,%d): %w", tx, tz, err)
	}
	if data, err = detour.UnmarshalTile(buf); err != nil {
		return fmt.Errorf("decode tile (%d,%d): %w", tx, tz, err)
	}
	if _, status = b.nav.AddTile(data, 0); status.Failed() {
		return fmt.Errorf("add tile (%d,%d): %w", tx, tz, status.Err())
	}
	b.res.TileReloads++
	logger.Debug("reloaded tile (%d,%d), %d bytes", tx, tz, len(buf))
	return nil
}
