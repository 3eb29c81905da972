package query

import (
	"github.com/hauke96/sigolo/v2"
	"time"
	"vex/pbf"
	"vex/storage"
)

// Dump writes all ways of the grid and their member nodes as a compact binary
// stream, using the same two-stage grid traversal as a query but over all
// bins. Nodes that belong to no way are not written.
func Dump(db *storage.Database, lock *storage.Lock, outputFile string) error {
	sigolo.Info("Acquiring shared read lock on database")
	err := lock.Shared()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	dumpStartTime := time.Now()

	writer, err := pbf.NewBinaryWriter(outputFile)
	if err != nil {
		return err
	}

	rect := binRect{
		minX: 0,
		maxX: storage.GridDim - 1,
		minY: 0,
		maxY: storage.GridDim - 1,
	}

	nodes := nodeStage(db, func(id int64, node storage.Node, tagData []byte) error {
		return writer.WriteNode(id, node.Coord.X, node.Coord.Y, tagData)
	})
	ways := wayStage(db, writer.WriteWay)

	err = traverse(db, rect, nodes, ways, writer.Flush)
	if err != nil {
		writer.Close()
		return err
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	sigolo.Infof("Wrote %s in %s", outputFile, time.Since(dumpStartTime))
	return nil
}
