package pbf

import (
	"context"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"os"
	"path/filepath"
	"testing"
	"vex/tags"
	"vex/util"
)

func scanFile(t *testing.T, path string) ([]*osm.Node, []*osm.Way) {
	f, err := os.Open(path)
	util.AssertNil(t, err)
	defer f.Close()

	scanner := osmpbf.New(context.Background(), f, 1)
	defer scanner.Close()

	var nodes []*osm.Node
	var ways []*osm.Way
	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Node:
			nodes = append(nodes, obj)
		case *osm.Way:
			ways = append(ways, obj)
		}
	}
	util.AssertNil(t, scanner.Err())
	return nodes, ways
}

func TestWriter_empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pbf")
	writer, err := NewWriter(path)
	util.AssertNil(t, err)
	util.AssertNil(t, writer.Close())

	nodes, ways := scanFile(t, path)
	util.AssertEqual(t, 0, len(nodes))
	util.AssertEqual(t, 0, len(ways))
}

func TestWriter_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pbf")
	writer, err := NewWriter(path)
	util.AssertNil(t, err)

	err = writer.WriteNode(1, 45.0, 45.0, nil)
	util.AssertNil(t, err)

	freeText := []byte{0, 'f', 'o', 'o', 0, 'b', 'a', 'r', 0, tags.Terminator}
	err = writer.WriteNode(2, 45.01, -45.0, freeText)
	util.AssertNil(t, err)

	wayTags := []byte{byte(tags.Encode("highway", "residential")), tags.Terminator}
	err = writer.WriteWay(10, []int64{1, 2}, wayTags)
	util.AssertNil(t, err)

	util.AssertNil(t, writer.Close())

	nodes, ways := scanFile(t, path)
	util.AssertEqual(t, 2, len(nodes))
	util.AssertEqual(t, 1, len(ways))

	util.AssertEqual(t, osm.NodeID(1), nodes[0].ID)
	util.AssertApprox(t, 45.0, nodes[0].Lat, 1e-7)
	util.AssertApprox(t, 45.0, nodes[0].Lon, 1e-7)
	util.AssertEqual(t, 0, len(nodes[0].Tags))

	util.AssertEqual(t, osm.NodeID(2), nodes[1].ID)
	util.AssertApprox(t, 45.01, nodes[1].Lat, 1e-7)
	util.AssertApprox(t, -45.0, nodes[1].Lon, 1e-7)
	util.AssertEqual(t, "bar", nodes[1].Tags.Find("foo"))

	way := ways[0]
	util.AssertEqual(t, osm.WayID(10), way.ID)
	util.AssertEqual(t, 2, len(way.Nodes))
	util.AssertEqual(t, osm.NodeID(1), way.Nodes[0].ID)
	util.AssertEqual(t, osm.NodeID(2), way.Nodes[1].ID)
	util.AssertEqual(t, "residential", way.Tags.Find("highway"))
}

func TestWriter_manyEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pbf")
	writer, err := NewWriter(path)
	util.AssertNil(t, err)

	// More entities than fit into one block, so at least two blobs get
	// written.
	for id := int64(1); id <= blockSize+100; id++ {
		err = writer.WriteNode(id, float64(id)*1e-5, float64(id)*1e-5, nil)
		util.AssertNil(t, err)
	}
	util.AssertNil(t, writer.Close())

	nodes, _ := scanFile(t, path)
	util.AssertEqual(t, blockSize+100, len(nodes))
	util.AssertEqual(t, osm.NodeID(1), nodes[0].ID)
	util.AssertEqual(t, osm.NodeID(blockSize+100), nodes[len(nodes)-1].ID)
}
