package storage

import (
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
)

// The grid is mostly empty due to ocean and wilderness, so cells do not hold
// way blocks directly but the index of the head block of a chain.

func cellIndex(c Coord) int {
	return int(Bin(c.X))*GridDim + int(Bin(c.Y))
}

// newWayBlock allocates the next way-reference block. Freshly reached pages of
// the sparse backing file read as zero, so Next starts out as the null index
// and only the free-slot tally needs initializing.
func (d *Database) newWayBlock() (uint32, error) {
	if d.wayBlockCount >= d.limits.MaxWayBlocks {
		return 0, errors.Errorf("All %d way reference blocks are in use", d.limits.MaxWayBlocks)
	}
	if d.wayBlockCount%100_000 == 0 {
		sigolo.Infof("%dk way blocks in use out of %dk", d.wayBlockCount/1000, d.limits.MaxWayBlocks/1000)
	}
	// A negative value in the last ref entry gives the number of free slots.
	d.wayBlocks[d.wayBlockCount].Refs[WayBlockSize-1] = -WayBlockSize
	wbi := d.wayBlockCount
	d.wayBlockCount++
	return wbi, nil
}

// insertWayIntoGrid records the way in the cell of its first member node.
// A full head block stays where it is; a fresh block is chained in front of it
// so inserts never scan the chain.
func (d *Database) insertWayIntoGrid(wayID int64, first Coord) error {
	cell := cellIndex(first)

	head := d.grid[cell]
	if head == 0 {
		wbi, err := d.newWayBlock()
		if err != nil {
			return err
		}
		d.grid[cell] = wbi
		head = wbi
	}

	wb := &d.wayBlocks[head]
	if wb.Refs[WayBlockSize-1] >= 0 {
		// The last ref holds a way ID, so no free slots remain.
		wbi, err := d.newWayBlock()
		if err != nil {
			return err
		}
		d.wayBlocks[wbi].Next = head
		d.grid[cell] = wbi
		wb = &d.wayBlocks[wbi]
	}

	nFree := wb.Refs[WayBlockSize-1]
	if nFree >= 0 {
		return errors.Errorf("Final ref of block for way %d should be negative, indicating the number of empty slots", wayID)
	}
	wb.Refs[WayBlockSize+nFree] = int32(wayID)
	// Filling the final slot overwrites the tally itself, the block is full now.
	if nFree != -1 {
		wb.Refs[WayBlockSize-1]++
	}
	return nil
}

// ForEachWayInCell invokes fn for every way whose first member node falls into
// the given grid cell, newest block first. Within a block, the occupied prefix
// ends at the first non-positive entry unless the block is full.
func (d *Database) ForEachWayInCell(xBin uint32, yBin uint32, fn func(wayID int64) error) error {
	wbi := d.grid[int(xBin)*GridDim+int(yBin)]
	if wbi == 0 {
		return nil
	}
	for {
		wb := &d.wayBlocks[wbi]
		for _, ref := range wb.Refs {
			if ref <= 0 {
				break
			}
			err := fn(int64(ref))
			if err != nil {
				return err
			}
		}
		if wb.Next == 0 {
			return nil
		}
		wbi = wb.Next
	}
}
