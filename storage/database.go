package storage

import (
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"math"
	"os"
	"unsafe"
	"vex/tags"
)

const (
	nodeBytes     = int64(unsafe.Sizeof(Node{}))     // 12
	wayBytes      = int64(unsafe.Sizeof(Way{}))      // 8
	wayBlockBytes = int64(unsafe.Sizeof(WayBlock{})) // 132
	cellBytes     = int64(4)
	nodeRefBytes  = int64(8)
)

// InMemoryName is the database name selecting shared-memory backing instead of
// files under a directory. Such a database does not survive a reboot.
const InMemoryName = "memory"

// Database is a single-host geographic store for OSM nodes and ways. All bulk
// state lives in memory-mapped sparse regions: dense ID-indexed node and way
// arrays, one global node-ref array holding the concatenated member lists of
// all ways, a spatial grid of cells pointing at chains of way-reference
// blocks, and 32 sharded tag streams.
type Database struct {
	dir      string
	inMemory bool
	limits   Limits

	gridRegion      *Region
	nodesRegion     *Region
	waysRegion      *Region
	nodeRefsRegion  *Region
	wayBlocksRegion *Region

	grid      []uint32 // GridDim * GridDim cells, row-major by x-bin; 0 means empty
	nodes     []Node
	ways      []Way
	nodeRefs  []int64 // a negative entry marks the end of a way's ref list
	wayBlocks []WayBlock

	nNodeRefs     uint32
	wayBlockCount uint32

	tagStore *TagStore
}

// Open maps all backing regions of the database under dir, creating them as
// sparse files on first use. The name "memory" selects shared-memory backing.
func Open(dir string, limits Limits) (*Database, error) {
	if len(dir) == 0 {
		return nil, errors.Errorf("Database path must be non-empty")
	}

	d := &Database{
		dir:      dir,
		inMemory: dir == InMemoryName,
		limits:   limits,
		// Sparse files read as zero until written, so block index 0 can mean
		// "no way block". Block zero is therefore never allocated.
		wayBlockCount: 1,
	}

	if !d.inMemory {
		err := os.MkdirAll(dir, os.ModePerm)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to create database directory %s", dir)
		}
	}

	var err error
	d.gridRegion, err = d.mapNamed("grid", cellBytes*GridDim*GridDim)
	if err != nil {
		return nil, err
	}
	d.nodesRegion, err = d.mapNamed("nodes", nodeBytes*(limits.MaxNodeID+1))
	if err != nil {
		return nil, err
	}
	d.waysRegion, err = d.mapNamed("ways", wayBytes*(limits.MaxWayID+1))
	if err != nil {
		return nil, err
	}
	d.nodeRefsRegion, err = d.mapNamed("node_refs", nodeRefBytes*int64(limits.MaxNodeRefs))
	if err != nil {
		return nil, err
	}
	d.wayBlocksRegion, err = d.mapNamed("way_blocks", wayBlockBytes*int64(limits.MaxWayBlocks))
	if err != nil {
		return nil, err
	}

	d.grid = unsafe.Slice((*uint32)(unsafe.Pointer(&d.gridRegion.data[0])), GridDim*GridDim)
	d.nodes = unsafe.Slice((*Node)(unsafe.Pointer(&d.nodesRegion.data[0])), limits.MaxNodeID+1)
	d.ways = unsafe.Slice((*Way)(unsafe.Pointer(&d.waysRegion.data[0])), limits.MaxWayID+1)
	d.nodeRefs = unsafe.Slice((*int64)(unsafe.Pointer(&d.nodeRefsRegion.data[0])), limits.MaxNodeRefs)
	d.wayBlocks = unsafe.Slice((*WayBlock)(unsafe.Pointer(&d.wayBlocksRegion.data[0])), limits.MaxWayBlocks)

	d.tagStore = newTagStore(dir, d.inMemory)

	return d, nil
}

func (d *Database) mapNamed(name string, size int64) (*Region, error) {
	return mapRegion(regionPath(d.dir, d.inMemory, name, -1), size)
}

func (d *Database) Limits() Limits {
	return d.limits
}

// AddNode stores a node record and its tag list. All nodes of an input must be
// added before the first way.
func (d *Database) AddNode(id int64, lat float64, lon float64, t []tags.Tag) error {
	if id < 0 || id > d.limits.MaxNodeID {
		return errors.Errorf("Node ID %d exceeds the maximum of %d", id, d.limits.MaxNodeID)
	}

	tagsOffset, err := d.tagStore.Write(id, NodeEntity, t)
	if err != nil {
		return err
	}

	d.nodes[id] = Node{
		Coord: ToCoord(lat, lon),
		Tags:  tagsOffset,
	}
	return nil
}

// AddWay stores a way record, appends its member-node list to the global
// node-ref array with the final entry negated as terminator, and indexes the
// way in the grid cell of its first member node.
func (d *Database) AddWay(id int64, refs []int64, t []tags.Tag) error {
	if id < 0 || id > d.limits.MaxWayID {
		return errors.Errorf("Way ID %d exceeds the maximum of %d", id, d.limits.MaxWayID)
	}
	if len(refs) == 0 {
		return errors.Errorf("Way %d has no node refs", id)
	}

	d.ways[id].FirstRef = d.nNodeRefs
	for _, ref := range refs {
		if ref < 0 || ref > d.limits.MaxNodeID {
			return errors.Errorf("Way %d references node %d which exceeds the maximum of %d", id, ref, d.limits.MaxNodeID)
		}
		if d.nNodeRefs >= d.limits.MaxNodeRefs || d.nNodeRefs == math.MaxUint32 {
			return errors.Errorf("Node ref array is full after %d entries", d.nNodeRefs)
		}
		d.nodeRefs[d.nNodeRefs] = ref
		d.nNodeRefs++
	}
	// Negate the last ref to mark the end of the list.
	d.nodeRefs[d.nNodeRefs-1] *= -1

	err := d.insertWayIntoGrid(id, d.nodes[refs[0]].Coord)
	if err != nil {
		return err
	}

	tagsOffset, err := d.tagStore.Write(id, WayEntity, t)
	if err != nil {
		return err
	}
	d.ways[id].Tags = tagsOffset

	return nil
}

func (d *Database) NodeByID(id int64) Node {
	return d.nodes[id]
}

func (d *Database) WayByID(id int64) Way {
	return d.ways[id]
}

// WayRefs returns the absolute member-node IDs of the given way, with the
// negated terminator decoded back to a positive ID.
func (d *Database) WayRefs(w Way) []int64 {
	var refs []int64
	for i := w.FirstRef; ; i++ {
		ref := d.nodeRefs[i]
		if ref < 0 {
			refs = append(refs, -ref)
			return refs
		}
		refs = append(refs, ref)
	}
}

// TagBytes returns the raw tag stream of the given entity starting at the
// given offset. The slice runs to the end of the subfile; readers stop at the
// list terminator.
func (d *Database) TagBytes(id int64, entityType EntityType, offset uint32) ([]byte, error) {
	return d.tagStore.Bytes(id, entityType, offset)
}

// FillFactor counts the used grid cells. With the 14-bit grid, a planet load
// fills roughly 7.5% of the cells.
func (d *Database) FillFactor() (int, float64) {
	used := 0
	for _, cell := range d.grid {
		if cell != 0 {
			used++
		}
	}
	return used, float64(used) / (GridDim * GridDim)
}

// Sync flushes all dirty pages of the backing regions to disk.
func (d *Database) Sync() error {
	for _, r := range d.regions() {
		err := r.Sync()
		if err != nil {
			return err
		}
	}
	return d.tagStore.Sync()
}

func (d *Database) Close() error {
	var firstErr error
	for _, r := range d.regions() {
		err := r.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	err := d.tagStore.Close()
	if err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		sigolo.Errorf("Closing database failed: %+v", firstErr)
	}
	return firstErr
}

func (d *Database) regions() []*Region {
	return []*Region{d.gridRegion, d.nodesRegion, d.waysRegion, d.nodeRefsRegion, d.wayBlocksRegion}
}
