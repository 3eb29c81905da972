package storage

import (
	"testing"
	"vex/tags"
	"vex/util"
)

func TestSubfileIndex(t *testing.T) {
	util.AssertEqual(t, int64(0), subfileIndex(1, NodeEntity))
	util.AssertEqual(t, int64(0), subfileIndex(1, WayEntity))
	util.AssertEqual(t, int64(0), subfileIndex(1, RelationEntity))

	// Node IDs are divided by 16, relation IDs multiplied by 64.
	util.AssertEqual(t, int64(16), subfileIndex(16<<29, NodeEntity))
	util.AssertEqual(t, int64(1), subfileIndex(1<<25, WayEntity))
	util.AssertEqual(t, int64(1), subfileIndex(1<<19, RelationEntity))

	util.AssertEqual(t, int64(0), subfileIndex(33_000_000, WayEntity))
	util.AssertEqual(t, int64(1), subfileIndex(34_000_000, WayEntity))
}

func TestTagStore_subfileOutOfRange(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	_, err := ts.Write(64<<25, WayEntity, []tags.Tag{{Key: "name", Val: "X"}})
	util.AssertNotNil(t, err)
}

func TestTagStore_roundTrip(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	list := []tags.Tag{
		{Key: "name", Val: "Hauptstrasse"}, // known key, free-text value
		{Key: "highway", Val: "residential"}, // known pair
		{Key: "unknown_key", Val: "unknown_value"}, // free text
	}
	offset, err := ts.Write(42, WayEntity, list)
	util.AssertNil(t, err)
	util.AssertEqual(t, uint32(1), offset)

	data, err := ts.Bytes(42, WayEntity, offset)
	util.AssertNil(t, err)
	util.AssertEqual(t, list, tags.DecodeAll(data))
}

func TestTagStore_offsetsMonotonic(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	list := []tags.Tag{{Key: "name", Val: "A"}}
	var previous uint32
	for i := 0; i < 10; i++ {
		offset, err := ts.Write(7, NodeEntity, list)
		util.AssertNil(t, err)
		util.AssertTrue(t, offset > previous)
		previous = offset
	}
}

func TestTagStore_skippedKeys(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	offset, err := ts.Write(1, NodeEntity, []tags.Tag{
		{Key: "created_by", Val: "JOSM"},
		{Key: "source", Val: "survey"},
		{Key: "tiger:foo", Val: "bar"},
		{Key: "name", Val: "X"},
	})
	util.AssertNil(t, err)

	data, err := ts.Bytes(1, NodeEntity, offset)
	util.AssertNil(t, err)
	util.AssertEqual(t, []tags.Tag{{Key: "name", Val: "X"}}, tags.DecodeAll(data))
}

func TestTagStore_allSkipped(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	offset, err := ts.Write(1, NodeEntity, []tags.Tag{
		{Key: "created_by", Val: "JOSM"},
		{Key: "sourced", Val: "prefix match also skips this"},
	})
	util.AssertNil(t, err)
	util.AssertEqual(t, uint32(0), offset)

	// The cursor did not move, the next real list starts right after the
	// sentinel.
	offset, err = ts.Write(1, NodeEntity, []tags.Tag{{Key: "name", Val: "X"}})
	util.AssertNil(t, err)
	util.AssertEqual(t, uint32(1), offset)
}

func TestTagStore_emptyList(t *testing.T) {
	ts := newTagStore(t.TempDir(), false)
	defer ts.Close()

	offset, err := ts.Write(1, NodeEntity, nil)
	util.AssertNil(t, err)
	util.AssertEqual(t, uint32(0), offset)

	data, err := ts.Bytes(1, NodeEntity, 0)
	util.AssertNil(t, err)
	util.AssertEqual(t, byte(tags.Terminator), data[0])
}
