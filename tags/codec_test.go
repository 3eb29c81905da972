package tags

import (
	"testing"
	"vex/util"
)

func TestEncode(t *testing.T) {
	util.AssertTrue(t, Encode("highway", "residential") > 0)
	util.AssertTrue(t, Encode("name", "Hauptstrasse") < 0)
	util.AssertEqual(t, int8(0), Encode("some_unknown_key", "value"))

	// A known key with an unknown value falls back to the key code.
	util.AssertTrue(t, Encode("highway", "no_such_value") < 0)
	util.AssertEqual(t, Encode("highway", "no_such_value"), Encode("highway", "other_value"))
}

func TestDecode_inverse(t *testing.T) {
	for _, tag := range []Tag{
		{Key: "highway", Val: "residential"},
		{Key: "name", Val: "Hauptstrasse"},
		{Key: "some_unknown_key", Val: "value"},
		{Key: "building", Val: "yes"},
		{Key: "maxspeed", Val: "50"},
	} {
		code := Encode(tag.Key, tag.Val)
		var buf []byte
		buf = append(buf, byte(code))
		if code == 0 {
			buf = append(buf, tag.Key...)
			buf = append(buf, 0)
			buf = append(buf, tag.Val...)
			buf = append(buf, 0)
		} else if code < 0 {
			buf = append(buf, tag.Val...)
			buf = append(buf, 0)
		}

		key, val, n := Decode(buf)
		util.AssertEqual(t, tag.Key, key)
		util.AssertEqual(t, tag.Val, val)
		util.AssertEqual(t, len(buf), n)
	}
}

func TestDecodeAll(t *testing.T) {
	buf := []byte{byte(Encode("highway", "residential"))}
	buf = append(buf, byte(Encode("name", "X")))
	buf = append(buf, 'X', 0)
	buf = append(buf, 0) // free-text record
	buf = append(buf, "foo"...)
	buf = append(buf, 0)
	buf = append(buf, "bar"...)
	buf = append(buf, 0)
	buf = append(buf, Terminator)

	util.AssertEqual(t, []Tag{
		{Key: "highway", Val: "residential"},
		{Key: "name", Val: "X"},
		{Key: "foo", Val: "bar"},
	}, DecodeAll(buf))

	util.AssertEqual(t, 0, len(DecodeAll([]byte{Terminator})))
}

func TestListBytes(t *testing.T) {
	buf := []byte{byte(Encode("highway", "residential")), Terminator, 'g', 'a', 'r', 'b', 'a', 'g', 'e'}
	util.AssertEqual(t, buf[:2], ListBytes(buf))

	util.AssertEqual(t, []byte{Terminator}, ListBytes([]byte{Terminator}))
}

func TestCodeRanges(t *testing.T) {
	// Code 127 is the list terminator, the pair dictionary must stay below it.
	util.AssertTrue(t, len(knownPairs) <= 126)
	util.AssertTrue(t, len(knownKeys) <= 128)
}
