package storage

import (
	"fmt"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"os"
	"path/filepath"
	"vex/util"
)

// Region is a memory-mapped backing file addressed as a flat byte array.
//
// The mapping cannot reliably be re-created at the same address across
// processes, so regions must never contain pointers. All cross-structure
// references are stored as array indexes instead, which also fit in 32 bits.
//
// Regions rely on sparse-file semantics: growing a file to its maximum logical
// size with a truncate call allocates no disk blocks until pages are actually
// written.
type Region struct {
	file *os.File
	data []byte
}

// mapRegion opens (creating if absent) the named backing file and maps it
// read/write and shared at its full logical size.
func mapRegion(path string, size int64) (*Region, error) {
	if size <= 0 {
		return nil, errors.Errorf("Region %s must have a non-zero size", path)
	}

	sigolo.Debugf("Mapping file '%s' of size %sB", path, util.HumanBytes(uint64(size)))

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open region file %s", path)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "Unable to memory map region file %s", path)
	}

	// The final byte of the last page is left off, the page is zero-filled by
	// the kernel anyway.
	err = file.Truncate(size - 1)
	if err != nil {
		unix.Munmap(data)
		file.Close()
		return nil, errors.Wrapf(err, "Unable to resize region file %s to %d bytes", path, size)
	}

	return &Region{
		file: file,
		data: data,
	}, nil
}

func (r *Region) Sync() error {
	err := unix.Msync(r.data, unix.MS_SYNC)
	return errors.Wrapf(err, "Unable to sync region file %s", r.file.Name())
}

func (r *Region) Close() error {
	if r.data != nil {
		err := unix.Munmap(r.data)
		r.data = nil
		if err != nil {
			r.file.Close()
			return errors.Wrapf(err, "Unable to unmap region file %s", r.file.Name())
		}
	}
	err := r.file.Close()
	return errors.Wrapf(err, "Unable to close region file %s", r.file.Name())
}

// regionPath builds the backing file name for a region under the database
// directory. In-memory databases live as named files on the shared-memory
// filesystem instead, scoped by a fixed prefix, and are not expected to
// survive a reboot.
func regionPath(dir string, inMemory bool, name string, subfile int) string {
	if inMemory {
		if subfile < 0 {
			subfile = 0
		}
		return filepath.Join("/dev/shm", fmt.Sprintf("vex_%s.%d", name, subfile))
	}
	if subfile < 0 {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%03d", name, subfile))
}
