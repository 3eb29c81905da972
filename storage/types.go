package storage

import "math"

// Grid geometry. 14 bits give cells of roughly 1.7km edge length at 45 degrees
// latitude, which keeps the typical number of ways per cell near the block size.
const (
	GridBits = 14
	GridDim  = 1 << GridBits

	// WayBlockSize is the number of way references per block, chosen to match
	// the typical number of ways per grid cell.
	WayBlockSize = 32
)

// Default capacities. There are over 10 times as many nodes as ways in OSM
// (https://taginfo.openstreetmap.org/reports/database_statistics), and roughly
// as many active node references as there are active and deleted nodes.
const (
	DefaultMaxNodeID    = 4_000_000_000
	DefaultMaxWayID     = 400_000_000
	DefaultMaxNodeRefs  = 4_000_000_000
	DefaultMaxWayBlocks = GridDim * GridDim / 5
)

// EntityType selects one of the three OSM element kinds. The values double as
// the processing order of a load or query: all nodes come before all ways.
type EntityType int

const (
	NodeEntity EntityType = iota
	WayEntity
	RelationEntity
)

// Limits bounds the ID-indexed backing arrays of a Database. The defaults
// match the size of the full OSM planet; tests use much smaller values so the
// node, way, node-ref and way-block files stay small. The grid and the tag
// subfiles have a fixed size that Limits does not affect.
type Limits struct {
	MaxNodeID    int64
	MaxWayID     int64
	MaxNodeRefs  uint32
	MaxWayBlocks uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxNodeID:    DefaultMaxNodeID,
		MaxWayID:     DefaultMaxWayID,
		MaxNodeRefs:  DefaultMaxNodeRefs,
		MaxWayBlocks: DefaultMaxWayBlocks,
	}
}

// Coord is a compact geographic position. Latitude and longitude are mapped
// linearly onto the full signed 32-bit integer range, which gives
// sub-centimetre resolution.
type Coord struct {
	X int32
	Y int32
}

func ToCoord(lat float64, lon float64) Coord {
	return Coord{
		X: int32(math.Round(lon * math.MaxInt32 / 180)),
		Y: int32(math.Round(lat * math.MaxInt32 / 90)),
	}
}

func (c Coord) Lat() float64 {
	return float64(c.Y) * 90 / math.MaxInt32
}

func (c Coord) Lon() float64 {
	return float64(c.X) * 180 / math.MaxInt32
}

// Bin returns the grid bin for one coordinate axis. Flipping the sign bit
// before the shift turns the signed coordinate order into unsigned order, so
// bins increase monotonically from the minimum to the maximum coordinate and a
// bin rectangle never wraps around the antimeridian.
func Bin(v int32) uint32 {
	return (uint32(v) ^ (1 << 31)) >> (32 - GridBits)
}

// Node is a single OSM node. An ID-indexed array of these serves as the map
// from node IDs to nodes. Deleted IDs leave holes, which cost nothing in a
// sparse file.
type Node struct {
	Coord Coord
	Tags  uint32 // byte offset into the tag subfile where this node's tag list begins
}

// Way is a single OSM way. Its member nodes are the slice of the global
// node-ref array starting at FirstRef; the list ends at the first negated
// entry.
type Way struct {
	FirstRef uint32
	Tags     uint32
}

// WayBlock is a fixed-size block of way references. Blocks are chained via
// Next to record which ways begin in each grid cell. While a block still has
// free slots, the final ref entry holds the negated free-slot count instead of
// a way ID.
type WayBlock struct {
	Refs [WayBlockSize]int32
	Next uint32
}
