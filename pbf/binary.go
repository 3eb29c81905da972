package pbf

import (
	"bufio"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"os"
	"vex/tags"
)

// Record markers of the compact binary dump, matching the load order of the
// element types.
const (
	binaryNode = 0
	binaryWay  = 1
)

// BinaryWriter emits the compact binary dump: a flat stream of delta-coded
// zigzag varints plus raw tag records. Blockwise compression would bring it
// down to PBF size, but the format stays much simpler.
//
// Each node record is the marker byte, the ID delta, the x delta and the
// y delta against the previous node, followed by the raw tag list including
// its terminator. Each way record is the marker byte, the ID delta against the
// previous way, the ref count, the delta-coded refs and the tag list.
type BinaryWriter struct {
	file   *os.File
	writer *bufio.Writer

	lastNodeID int64
	lastWayID  int64
	lastX      int64
	lastY      int64
}

func NewBinaryWriter(path string) (*BinaryWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to create dump file %s", path)
	}
	return &BinaryWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *BinaryWriter) WriteNode(id int64, x int32, y int32, tagData []byte) error {
	record := []byte{binaryNode}
	record = appendZigZag(record, id-w.lastNodeID)
	record = appendZigZag(record, int64(x)-w.lastX)
	record = appendZigZag(record, int64(y)-w.lastY)
	record = appendTagList(record, tagData)
	w.lastNodeID = id
	w.lastX = int64(x)
	w.lastY = int64(y)

	_, err := w.writer.Write(record)
	return errors.Wrapf(err, "Unable to write node %d to dump file", id)
}

func (w *BinaryWriter) WriteWay(id int64, refs []int64, tagData []byte) error {
	record := []byte{binaryWay}
	record = appendZigZag(record, id-w.lastWayID)
	record = protowire.AppendVarint(record, uint64(len(refs)))
	var last int64
	for _, ref := range refs {
		record = appendZigZag(record, ref-last)
		last = ref
	}
	record = appendTagList(record, tagData)
	w.lastWayID = id

	_, err := w.writer.Write(record)
	return errors.Wrapf(err, "Unable to write way %d to dump file", id)
}

func (w *BinaryWriter) Flush() error {
	err := w.writer.Flush()
	return errors.Wrapf(err, "Unable to flush dump file %s", w.file.Name())
}

func (w *BinaryWriter) Close() error {
	err := w.Flush()
	if err != nil {
		w.file.Close()
		return err
	}
	err = w.file.Close()
	return errors.Wrapf(err, "Unable to close dump file %s", w.file.Name())
}

func appendZigZag(b []byte, v int64) []byte {
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendTagList(b []byte, tagData []byte) []byte {
	if len(tagData) == 0 {
		return append(b, tags.Terminator)
	}
	return append(b, tags.ListBytes(tagData)...)
}
