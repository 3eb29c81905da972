package query

import (
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"time"
	"vex/pbf"
	"vex/storage"
)

// binRect is an inclusive rectangle of grid bins.
type binRect struct {
	minX uint32
	maxX uint32
	minY uint32
	maxY uint32
}

func boundToBinRect(bbox orb.Bound) (binRect, error) {
	minLat, minLon := bbox.Min.Lat(), bbox.Min.Lon()
	maxLat, maxLon := bbox.Max.Lat(), bbox.Max.Lon()

	for _, lat := range []float64{minLat, maxLat} {
		if lat < -90 || lat > 90 {
			return binRect{}, errors.Errorf("Latitude %f is out of range", lat)
		}
	}
	for _, lon := range []float64{minLon, maxLon} {
		if lon < -180 || lon > 180 {
			return binRect{}, errors.Errorf("Longitude %f is out of range", lon)
		}
	}
	if minLat >= maxLat {
		return binRect{}, errors.Errorf("Minimum latitude %f must be less than maximum latitude %f", minLat, maxLat)
	}
	if minLon >= maxLon {
		return binRect{}, errors.Errorf("Minimum longitude %f must be less than maximum longitude %f", minLon, maxLon)
	}

	cmin := storage.ToCoord(minLat, minLon)
	cmax := storage.ToCoord(maxLat, maxLon)
	return binRect{
		minX: storage.Bin(cmin.X),
		maxX: storage.Bin(cmax.X),
		minY: storage.Bin(cmin.Y),
		maxY: storage.Bin(cmax.Y),
	}, nil
}

// Execute writes all ways starting in the bin rectangle covering bbox, and all
// their member nodes, to a PBF file. Two passes over the rectangle keep the
// output ordered: all nodes first, then all ways. A node shared by two
// enumerated ways is emitted once per way.
func Execute(db *storage.Database, lock *storage.Lock, bbox orb.Bound, outputFile string) error {
	rect, err := boundToBinRect(bbox)
	if err != nil {
		return err
	}

	sigolo.Info("Acquiring shared read lock on database")
	err = lock.Shared()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	queryStartTime := time.Now()

	writer, err := pbf.NewWriter(outputFile)
	if err != nil {
		return err
	}

	nodes := nodeStage(db, func(id int64, node storage.Node, tagData []byte) error {
		return writer.WriteNode(id, node.Coord.Lat(), node.Coord.Lon(), tagData)
	})
	err = traverse(db, rect, nodes, wayStage(db, writer.WriteWay), writer.Flush)
	if err != nil {
		writer.Close()
		return err
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	sigolo.Infof("Wrote %s in %s", outputFile, time.Since(queryStartTime))
	return nil
}

// traverse runs the two emission stages over the bin rectangle, flushing the
// output after each stage.
func traverse(db *storage.Database, rect binRect, nodes func(wayID int64) error, ways func(wayID int64) error, flush func() error) error {
	for _, visit := range []func(wayID int64) error{nodes, ways} {
		for x := rect.minX; x <= rect.maxX; x++ {
			for y := rect.minY; y <= rect.maxY; y++ {
				err := db.ForEachWayInCell(x, y, visit)
				if err != nil {
					return err
				}
			}
		}
		err := flush()
		if err != nil {
			return err
		}
	}
	return nil
}

// nodeStage emits all member nodes of a way.
func nodeStage(db *storage.Database, emit func(id int64, node storage.Node, tagData []byte) error) func(wayID int64) error {
	return func(wayID int64) error {
		way := db.WayByID(wayID)
		for _, nodeID := range db.WayRefs(way) {
			node := db.NodeByID(nodeID)
			tagData, err := db.TagBytes(nodeID, storage.NodeEntity, node.Tags)
			if err != nil {
				return err
			}
			err = emit(nodeID, node, tagData)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// wayStage emits the way itself.
func wayStage(db *storage.Database, emit func(id int64, refs []int64, tagData []byte) error) func(wayID int64) error {
	return func(wayID int64) error {
		way := db.WayByID(wayID)
		tagData, err := db.TagBytes(wayID, storage.WayEntity, way.Tags)
		if err != nil {
			return err
		}
		return emit(wayID, db.WayRefs(way), tagData)
	}
}
