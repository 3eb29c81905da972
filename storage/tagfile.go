package storage

import (
	"github.com/pkg/errors"
	"math"
	"strings"
	"vex/tags"
)

// Each tag subfile is a 4 GiB sparse region so that all offsets into it fit in
// 32 bits.
const (
	maxSubfiles    = 32
	subfileSize    = int64(1) << 32
	subfileBitsOff = 25 // splits the way ID space into sub-ranges of ~33 million IDs
)

// Keys that carry no query value and bloat the stream. The first three match
// exactly, the last two by prefix.
var skippedKeys = []string{"created_by", "import_uuid", "attribution"}
var skippedKeyPrefixes = []string{"source", "tiger:"}

// TagStore holds the dictionary-compressed tag lists of all entities, sharded
// over up to 32 lazily mapped subfiles. Offset 0 of every subfile is reserved
// for the shared empty list: a single terminator byte.
type TagStore struct {
	dir      string
	inMemory bool
	subfiles [maxSubfiles]*tagSubfile
}

type tagSubfile struct {
	region *Region
	pos    uint64 // append cursor; strictly increasing, offset 0 is reserved
}

func newTagStore(dir string, inMemory bool) *TagStore {
	return &TagStore{
		dir:      dir,
		inMemory: inMemory,
	}
}

// subfileIndex shards the ID space. There are ~10x more nodes than ways and
// ~100x fewer relations, so node IDs are divided and relation IDs multiplied
// to spread the tag volume evenly over the way ID range.
func subfileIndex(id int64, entityType EntityType) int64 {
	if entityType == NodeEntity {
		id /= 16
	} else if entityType == RelationEntity {
		id *= 64
	}
	return id >> subfileBitsOff
}

func (t *TagStore) subfileFor(id int64, entityType EntityType) (*tagSubfile, error) {
	index := subfileIndex(id, entityType)
	if index < 0 || index >= maxSubfiles {
		return nil, errors.Errorf("ID %d of entity type %d needs tag subfile %d, but only %d exist", id, entityType, index, maxSubfiles)
	}
	if t.subfiles[index] == nil {
		region, err := mapRegion(regionPath(t.dir, t.inMemory, "tags", int(index)), subfileSize)
		if err != nil {
			return nil, err
		}
		// The empty-tags sentinel must be in place before the first list is
		// written or read.
		region.data[0] = tags.Terminator
		t.subfiles[index] = &tagSubfile{
			region: region,
			pos:    1,
		}
	}
	return t.subfiles[index], nil
}

func skipKey(key string) bool {
	for _, skipped := range skippedKeys {
		if key == skipped {
			return true
		}
	}
	for _, prefix := range skippedKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Write appends the tag list of one entity to its subfile and returns the byte
// offset where the list begins. Entities whose list is empty after skipping
// share offset 0.
func (t *TagStore) Write(id int64, entityType EntityType, list []tags.Tag) (uint32, error) {
	sf, err := t.subfileFor(id, entityType)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}
	if sf.pos > math.MaxUint32 {
		return 0, errors.Errorf("Tag subfile offset for entity %d has overflowed", id)
	}

	// The record bytes are assembled up front, so a list that turns out empty
	// after skipping leaves the cursor untouched.
	var record []byte
	written := 0
	for _, tag := range list {
		if skipKey(tag.Key) {
			continue
		}
		code := tags.Encode(tag.Key, tag.Val)
		record = append(record, byte(code))
		if code == 0 {
			// Neither key nor value are in the dictionary, both follow in full.
			record = append(record, tag.Key...)
			record = append(record, 0)
			record = append(record, tag.Val...)
			record = append(record, 0)
		} else if code < 0 {
			// The code resolves the key, the value follows as free text.
			record = append(record, tag.Val...)
			record = append(record, 0)
		}
		written++
	}
	if written == 0 {
		return 0, nil
	}
	record = append(record, tags.Terminator)

	if sf.pos+uint64(len(record)) > uint64(subfileSize) {
		return 0, errors.Errorf("Tag subfile for entity %d is full", id)
	}
	offset := sf.pos
	copy(sf.region.data[offset:], record)
	sf.pos += uint64(len(record))
	return uint32(offset), nil
}

// Bytes returns the tag stream of the given entity from offset to the end of
// the subfile. Readers stop at the list terminator.
func (t *TagStore) Bytes(id int64, entityType EntityType, offset uint32) ([]byte, error) {
	sf, err := t.subfileFor(id, entityType)
	if err != nil {
		return nil, err
	}
	return sf.region.data[offset:], nil
}

func (t *TagStore) Sync() error {
	for _, sf := range t.subfiles {
		if sf == nil {
			continue
		}
		err := sf.region.Sync()
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *TagStore) Close() error {
	var firstErr error
	for i, sf := range t.subfiles {
		if sf == nil {
			continue
		}
		err := sf.region.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		t.subfiles[i] = nil
	}
	return firstErr
}
