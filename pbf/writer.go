// Package pbf writes OSM protocol-buffer files. Entities are buffered and
// emitted as zlib-compressed OSMData blobs of dense nodes and ways; the block
// string table carries the decoded tag strings.
package pbf

import (
	"bytes"
	"encoding/binary"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
	"os"
	"vex/tags"
)

// Field numbers of the OSM PBF format (fileformat.proto and osmformat.proto).
const (
	blobHeaderType     = 1
	blobHeaderDatasize = 3

	blobRawSize  = 2
	blobZlibData = 3

	headerBlockRequiredFeatures = 4
	headerBlockWritingProgram   = 16

	primitiveBlockStringTable     = 1
	primitiveBlockGroup           = 2
	primitiveBlockGranularity     = 17
	primitiveBlockDateGranularity = 18

	stringTableEntry = 1

	groupDenseNodes = 2
	groupWay        = 3

	denseID       = 1
	denseLat      = 8
	denseLon      = 9
	denseKeysVals = 10

	wayID   = 1
	wayKeys = 2
	wayVals = 3
	wayRefs = 8
)

const granularity = 100 // nanodegrees per coordinate unit
const dateGranularity = 1000

// blockSize is the number of buffered entities that triggers a new OSMData
// blob.
const blockSize = 8000

type pendingNode struct {
	id   int64
	lat  int64 // in granularity units
	lon  int64
	tags []tags.Tag
}

type pendingWay struct {
	id   int64
	refs []int64
	tags []tags.Tag
}

// Writer emits an OSM PBF file. Nodes and ways may be interleaved; each
// flushed block keeps them in separate primitive groups.
type Writer struct {
	file  *os.File
	nodes []pendingNode
	ways  []pendingWay
}

func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to create output file %s", path)
	}
	w := &Writer{file: file}

	err = w.writeHeaderBlob()
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// WriteNode buffers one node. The tag data is a raw tag stream as stored in
// the database, terminated by the list terminator; nil or an immediate
// terminator mean no tags.
func (w *Writer) WriteNode(id int64, lat float64, lon float64, tagData []byte) error {
	w.nodes = append(w.nodes, pendingNode{
		id:   id,
		lat:  int64(math.Round(lat * 1e9 / granularity)),
		lon:  int64(math.Round(lon * 1e9 / granularity)),
		tags: decodeTagData(tagData),
	})
	return w.flushIfFull()
}

// WriteWay buffers one way with absolute member-node IDs; they are delta-coded
// on the wire.
func (w *Writer) WriteWay(id int64, refs []int64, tagData []byte) error {
	w.ways = append(w.ways, pendingWay{
		id:   id,
		refs: refs,
		tags: decodeTagData(tagData),
	})
	return w.flushIfFull()
}

func decodeTagData(tagData []byte) []tags.Tag {
	if len(tagData) == 0 {
		return nil
	}
	return tags.DecodeAll(tagData)
}

func (w *Writer) flushIfFull() error {
	if len(w.nodes)+len(w.ways) < blockSize {
		return nil
	}
	return w.Flush()
}

// Flush writes all buffered entities as one OSMData blob.
func (w *Writer) Flush() error {
	if len(w.nodes) == 0 && len(w.ways) == 0 {
		return nil
	}

	st := newStringTable()
	var groups [][]byte
	if len(w.nodes) > 0 {
		dense := encodeDenseNodes(w.nodes, st)
		group := protowire.AppendTag(nil, groupDenseNodes, protowire.BytesType)
		group = protowire.AppendBytes(group, dense)
		groups = append(groups, group)
	}
	if len(w.ways) > 0 {
		var group []byte
		for _, way := range w.ways {
			group = protowire.AppendTag(group, groupWay, protowire.BytesType)
			group = protowire.AppendBytes(group, encodeWay(way, st))
		}
		groups = append(groups, group)
	}

	// The string table is only complete once all groups are encoded, but leads
	// the block on the wire.
	block := protowire.AppendTag(nil, primitiveBlockStringTable, protowire.BytesType)
	block = protowire.AppendBytes(block, st.encode())
	for _, group := range groups {
		block = protowire.AppendTag(block, primitiveBlockGroup, protowire.BytesType)
		block = protowire.AppendBytes(block, group)
	}
	block = protowire.AppendTag(block, primitiveBlockGranularity, protowire.VarintType)
	block = protowire.AppendVarint(block, granularity)
	block = protowire.AppendTag(block, primitiveBlockDateGranularity, protowire.VarintType)
	block = protowire.AppendVarint(block, dateGranularity)

	w.nodes = w.nodes[:0]
	w.ways = w.ways[:0]

	return w.writeBlob("OSMData", block)
}

func (w *Writer) Close() error {
	err := w.Flush()
	if err != nil {
		w.file.Close()
		return err
	}
	err = w.file.Close()
	return errors.Wrapf(err, "Unable to close output file %s", w.file.Name())
}

func (w *Writer) writeHeaderBlob() error {
	var header []byte
	for _, feature := range []string{"OsmSchema-V0.6", "DenseNodes"} {
		header = protowire.AppendTag(header, headerBlockRequiredFeatures, protowire.BytesType)
		header = protowire.AppendString(header, feature)
	}
	header = protowire.AppendTag(header, headerBlockWritingProgram, protowire.BytesType)
	header = protowire.AppendString(header, "vex")
	return w.writeBlob("OSMHeader", header)
}

// writeBlob wraps a raw block into the zlib-compressed blob framing: a 4-byte
// big-endian blob-header length, the blob header, the blob.
func (w *Writer) writeBlob(blobType string, raw []byte) error {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(raw)
	if err != nil {
		return errors.Wrap(err, "Unable to compress blob data")
	}
	err = zw.Close()
	if err != nil {
		return errors.Wrap(err, "Unable to finish compressing blob data")
	}

	blob := protowire.AppendTag(nil, blobRawSize, protowire.VarintType)
	blob = protowire.AppendVarint(blob, uint64(len(raw)))
	blob = protowire.AppendTag(blob, blobZlibData, protowire.BytesType)
	blob = protowire.AppendBytes(blob, compressed.Bytes())

	blobHeader := protowire.AppendTag(nil, blobHeaderType, protowire.BytesType)
	blobHeader = protowire.AppendString(blobHeader, blobType)
	blobHeader = protowire.AppendTag(blobHeader, blobHeaderDatasize, protowire.VarintType)
	blobHeader = protowire.AppendVarint(blobHeader, uint64(len(blob)))

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(blobHeader)))

	for _, chunk := range [][]byte{size[:], blobHeader, blob} {
		_, err = w.file.Write(chunk)
		if err != nil {
			return errors.Wrapf(err, "Unable to write blob to output file %s", w.file.Name())
		}
	}
	return nil
}

func encodeDenseNodes(nodes []pendingNode, st *stringTable) []byte {
	var ids, lats, lons, keysVals []byte
	var lastID, lastLat, lastLon int64
	tagged := false
	for _, n := range nodes {
		ids = protowire.AppendVarint(ids, protowire.EncodeZigZag(n.id-lastID))
		lats = protowire.AppendVarint(lats, protowire.EncodeZigZag(n.lat-lastLat))
		lons = protowire.AppendVarint(lons, protowire.EncodeZigZag(n.lon-lastLon))
		lastID, lastLat, lastLon = n.id, n.lat, n.lon
		if len(n.tags) > 0 {
			tagged = true
		}
	}
	if tagged {
		// Once any node carries tags, every node needs its key/value pairs and
		// the trailing 0 delimiter.
		for _, n := range nodes {
			for _, tag := range n.tags {
				keysVals = protowire.AppendVarint(keysVals, st.index(tag.Key))
				keysVals = protowire.AppendVarint(keysVals, st.index(tag.Val))
			}
			keysVals = protowire.AppendVarint(keysVals, 0)
		}
	}

	dense := protowire.AppendTag(nil, denseID, protowire.BytesType)
	dense = protowire.AppendBytes(dense, ids)
	dense = protowire.AppendTag(dense, denseLat, protowire.BytesType)
	dense = protowire.AppendBytes(dense, lats)
	dense = protowire.AppendTag(dense, denseLon, protowire.BytesType)
	dense = protowire.AppendBytes(dense, lons)
	if len(keysVals) > 0 {
		dense = protowire.AppendTag(dense, denseKeysVals, protowire.BytesType)
		dense = protowire.AppendBytes(dense, keysVals)
	}
	return dense
}

func encodeWay(way pendingWay, st *stringTable) []byte {
	encoded := protowire.AppendTag(nil, wayID, protowire.VarintType)
	encoded = protowire.AppendVarint(encoded, uint64(way.id))

	if len(way.tags) > 0 {
		var keys, vals []byte
		for _, tag := range way.tags {
			keys = protowire.AppendVarint(keys, st.index(tag.Key))
			vals = protowire.AppendVarint(vals, st.index(tag.Val))
		}
		encoded = protowire.AppendTag(encoded, wayKeys, protowire.BytesType)
		encoded = protowire.AppendBytes(encoded, keys)
		encoded = protowire.AppendTag(encoded, wayVals, protowire.BytesType)
		encoded = protowire.AppendBytes(encoded, vals)
	}

	var refs []byte
	var last int64
	for _, ref := range way.refs {
		refs = protowire.AppendVarint(refs, protowire.EncodeZigZag(ref-last))
		last = ref
	}
	encoded = protowire.AppendTag(encoded, wayRefs, protowire.BytesType)
	encoded = protowire.AppendBytes(encoded, refs)
	return encoded
}

// stringTable interns the strings of one primitive block. Index 0 is reserved
// and never referenced.
type stringTable struct {
	indexes map[string]uint64
	entries []string
}

func newStringTable() *stringTable {
	return &stringTable{
		indexes: map[string]uint64{},
		entries: []string{""},
	}
}

func (s *stringTable) index(v string) uint64 {
	index, ok := s.indexes[v]
	if ok {
		return index
	}
	index = uint64(len(s.entries))
	s.entries = append(s.entries, v)
	s.indexes[v] = index
	return index
}

func (s *stringTable) encode() []byte {
	var encoded []byte
	for _, entry := range s.entries {
		encoded = protowire.AppendTag(encoded, stringTableEntry, protowire.BytesType)
		encoded = protowire.AppendString(encoded, entry)
	}
	return encoded
}
