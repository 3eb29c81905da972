package storage

import (
	"math"
	"testing"
	"vex/util"
)

func TestToCoord_roundTrip(t *testing.T) {
	for lat := -90.0; lat <= 90.0; lat += 0.7919 {
		for lon := -180.0; lon <= 180.0; lon += 1.5837 {
			coord := ToCoord(lat, lon)
			util.AssertApprox(t, lat, coord.Lat(), 5e-8)
			util.AssertApprox(t, lon, coord.Lon(), 5e-8)
		}
	}

	coord := ToCoord(90, 180)
	util.AssertEqual(t, int32(math.MaxInt32), coord.X)
	util.AssertEqual(t, int32(math.MaxInt32), coord.Y)

	coord = ToCoord(-90, -180)
	util.AssertEqual(t, int32(-math.MaxInt32), coord.X)
	util.AssertEqual(t, int32(-math.MaxInt32), coord.Y)
}

func TestBin_bounds(t *testing.T) {
	util.AssertEqual(t, uint32(0), Bin(math.MinInt32))
	util.AssertEqual(t, uint32(GridDim-1), Bin(math.MaxInt32))
	util.AssertEqual(t, uint32(GridDim/2), Bin(0))
}

func TestBin_monotonic(t *testing.T) {
	previous := Bin(math.MinInt32)
	for v := int64(math.MinInt32); v <= math.MaxInt32; v += 1 << 16 {
		b := Bin(int32(v))
		util.AssertTrue(t, b >= previous)
		util.AssertTrue(t, b < GridDim)
		previous = b
	}
}
