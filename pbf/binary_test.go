package pbf

import (
	"google.golang.org/protobuf/encoding/protowire"
	"os"
	"path/filepath"
	"testing"
	"vex/tags"
	"vex/util"
)

func TestBinaryWriter_deltaCoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vexbin")
	writer, err := NewBinaryWriter(path)
	util.AssertNil(t, err)

	err = writer.WriteNode(100, 50, -50, nil)
	util.AssertNil(t, err)
	err = writer.WriteNode(103, 60, -40, nil)
	util.AssertNil(t, err)
	err = writer.WriteWay(10, []int64{5, 7, 4, 14}, nil)
	util.AssertNil(t, err)
	util.AssertNil(t, writer.Close())

	data, err := os.ReadFile(path)
	util.AssertNil(t, err)

	pos := 0
	readByte := func() byte {
		b := data[pos]
		pos++
		return b
	}
	readZigZag := func() int64 {
		v, n := protowire.ConsumeVarint(data[pos:])
		util.AssertTrue(t, n > 0)
		pos += n
		return protowire.DecodeZigZag(v)
	}

	util.AssertEqual(t, byte(binaryNode), readByte())
	util.AssertEqual(t, int64(100), readZigZag())
	util.AssertEqual(t, int64(50), readZigZag())
	util.AssertEqual(t, int64(-50), readZigZag())
	util.AssertEqual(t, byte(tags.Terminator), readByte())

	util.AssertEqual(t, byte(binaryNode), readByte())
	util.AssertEqual(t, int64(3), readZigZag())
	util.AssertEqual(t, int64(10), readZigZag())
	util.AssertEqual(t, int64(10), readZigZag())
	util.AssertEqual(t, byte(tags.Terminator), readByte())

	util.AssertEqual(t, byte(binaryWay), readByte())
	util.AssertEqual(t, int64(10), readZigZag())
	refCount, n := protowire.ConsumeVarint(data[pos:])
	pos += n
	util.AssertEqual(t, uint64(4), refCount)
	util.AssertEqual(t, int64(5), readZigZag())
	util.AssertEqual(t, int64(2), readZigZag())
	util.AssertEqual(t, int64(-3), readZigZag())
	util.AssertEqual(t, int64(10), readZigZag())
	util.AssertEqual(t, byte(tags.Terminator), readByte())

	util.AssertEqual(t, len(data), pos)
}
