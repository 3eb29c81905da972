package storage

import (
	"os"
	"path/filepath"
	"testing"
	"vex/util"
)

func TestMapRegion_persistsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")

	region, err := mapRegion(path, 1<<20)
	util.AssertNil(t, err)

	region.data[0] = 42
	region.data[4096] = 43
	util.AssertNil(t, region.Sync())
	util.AssertNil(t, region.Close())

	region, err = mapRegion(path, 1<<20)
	util.AssertNil(t, err)
	defer region.Close()

	util.AssertEqual(t, byte(42), region.data[0])
	util.AssertEqual(t, byte(43), region.data[4096])
	// Untouched pages of the sparse file read as zero.
	util.AssertEqual(t, byte(0), region.data[1<<19])
}

func TestMapRegion_zeroSize(t *testing.T) {
	_, err := mapRegion(filepath.Join(t.TempDir(), "region"), 0)
	util.AssertNotNil(t, err)
}

func TestMapRegion_logicalSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")

	region, err := mapRegion(path, 1<<20)
	util.AssertNil(t, err)
	defer region.Close()

	info, err := os.Stat(path)
	util.AssertNil(t, err)
	util.AssertEqual(t, int64(1<<20-1), info.Size())
}

func TestLock_acquireRelease(t *testing.T) {
	lock, err := OpenLock(filepath.Join(t.TempDir(), "lock"))
	util.AssertNil(t, err)
	defer lock.Close()

	util.AssertNil(t, lock.Exclusive())
	util.AssertNil(t, lock.Unlock())
	util.AssertNil(t, lock.Shared())
	util.AssertNil(t, lock.Unlock())
}
