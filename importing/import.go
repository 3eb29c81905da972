package importing

import (
	"context"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"os"
	"strings"
	"time"
	"vex/storage"
	"vex/tags"
)

// Import loads the given OSM file into the database, replacing its previous
// contents. The exclusive lock is held for the entire load, so readers see
// either the old or the new state, never a mix.
//
// The input must contain all nodes before any way; ways arriving early or
// nodes arriving late abort the load. Relations are skipped.
func Import(inputFile string, db *storage.Database, lock *storage.Lock) error {
	if !strings.HasSuffix(inputFile, ".osm") && !strings.HasSuffix(inputFile, ".pbf") {
		return errors.Errorf("Input file must be an .osm or .pbf file")
	}

	f, err := os.Open(inputFile)
	if err != nil {
		return errors.Wrapf(err, "Unable to open input file %s", inputFile)
	}
	defer f.Close()

	var scanner osm.Scanner
	if strings.HasSuffix(inputFile, ".osm") {
		scanner = osmxml.New(context.Background(), f)
	} else {
		scanner = osmpbf.New(context.Background(), f, 1)
	}
	defer scanner.Close()

	sigolo.Info("Acquiring exclusive write lock on database")
	err = lock.Exclusive()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	sigolo.Info("Start loading input data")
	importStartTime := time.Now()

	im := importer{db: db}
	for scanner.Scan() {
		switch osmObj := scanner.Object().(type) {
		case *osm.Node:
			err = im.handleNode(osmObj)
		case *osm.Way:
			err = im.handleWay(osmObj)
		case *osm.Relation:
			// Relations are not stored.
		}
		if err != nil {
			return err
		}
	}
	err = scanner.Err()
	if err != nil {
		return errors.Wrapf(err, "Unable to scan input file %s", inputFile)
	}

	used, fillFactor := db.FillFactor()
	sigolo.Infof("Index grid: %d cells used, %.2f%% full", used, fillFactor*100)
	sigolo.Infof("Loaded %d nodes and %d ways total in %s", im.nodesLoaded, im.waysLoaded, time.Since(importStartTime))

	return db.Sync()
}

type importer struct {
	db          *storage.Database
	nodesLoaded int64
	waysLoaded  int64
}

func (im *importer) handleNode(node *osm.Node) error {
	if im.waysLoaded > 0 {
		return errors.Errorf("Node %d arrived after %d ways, all nodes must appear before any ways in the input file", node.ID, im.waysLoaded)
	}

	err := im.db.AddNode(int64(node.ID), node.Lat, node.Lon, convertTags(node.Tags))
	if err != nil {
		return err
	}

	im.nodesLoaded++
	if im.nodesLoaded%1_000_000 == 0 {
		sigolo.Infof("Loaded %dM nodes", im.nodesLoaded/1_000_000)
	}
	return nil
}

func (im *importer) handleWay(way *osm.Way) error {
	if im.nodesLoaded == 0 {
		return errors.Errorf("Way %d arrived before any node, all nodes must appear before any ways in the input file", way.ID)
	}

	refs := make([]int64, len(way.Nodes))
	for i, wayNode := range way.Nodes {
		refs[i] = int64(wayNode.ID)
	}

	err := im.db.AddWay(int64(way.ID), refs, convertTags(way.Tags))
	if err != nil {
		return err
	}

	im.waysLoaded++
	if im.waysLoaded%1_000_000 == 0 {
		sigolo.Infof("Loaded %dM ways", im.waysLoaded/1_000_000)
	}
	return nil
}

func convertTags(osmTags osm.Tags) []tags.Tag {
	if len(osmTags) == 0 {
		return nil
	}
	converted := make([]tags.Tag, len(osmTags))
	for i, tag := range osmTags {
		converted[i] = tags.Tag{Key: tag.Key, Val: tag.Value}
	}
	return converted
}
