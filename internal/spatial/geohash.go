package spatial

import (
	"fmt"
	"strings"
)

// Base32 encoding for geohash
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxGeohashPrecision is the longest geohash handled.
const MaxGeohashPrecision = 12

// geohashCellSizes holds the approximate cell width in meters at the equator,
// indexed by precision.
var geohashCellSizes = [MaxGeohashPrecision + 1]float64{
	0,
	5000000, // ±2500 km
	625000,  // ±312.5 km
	123000,  // ±61.5 km
	19500,   // ±9.75 km
	3900,    // ±1.95 km
	610,     // ±305 m
	120,     // ±60 m
	19,      // ±9.5 m
	3.7,     // ±1.85 m
	0.6,     // ±30 cm
	0.12,    // ±6 cm
	0.019,   // ±0.95 cm
}

// EncodeGeohash encodes a position into a geohash of precision characters,
// clamped to [1, MaxGeohashPrecision].
func EncodeGeohash(lat, lon float64, precision int) string {
	precision = max(1, min(precision, MaxGeohashPrecision))

	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)
	even := true
	ch, bits := 0, 0
	for sb.Len() < precision {
		ch <<= 1
		if even {
			if mid := (lonLo + lonHi) / 2; lon > mid {
				ch |= 1
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			if mid := (latLo + latHi) / 2; lat > mid {
				ch |= 1
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even

		if bits++; bits == 5 {
			sb.WriteByte(base32[ch])
			ch, bits = 0, 0
		}
	}

	return sb.String()
}

// DecodeGeohash returns the center of the geohash cell.
func DecodeGeohash(hash string) (lat, lon float64, err error) {
	if err := ValidateGeohash(hash); err != nil {
		return 0, 0, err
	}

	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	even := true
	for i := 0; i < len(hash); i++ {
		idx := strings.IndexByte(base32, hash[i])
		for mask := 16; mask > 0; mask >>= 1 {
			if even {
				mid := (lonLo + lonHi) / 2
				if idx&mask != 0 {
					lonLo = mid
				} else {
					lonHi = mid
				}
			} else {
				mid := (latLo + latHi) / 2
				if idx&mask != 0 {
					latLo = mid
				} else {
					latHi = mid
				}
			}
			even = !even
		}
	}

	return (latLo + latHi) / 2, (lonLo + lonHi) / 2, nil
}

// ValidateGeohash checks that hash is a non-empty geohash of at most
// MaxGeohashPrecision characters.
func ValidateGeohash(hash string) error {
	if hash == "" || len(hash) > MaxGeohashPrecision {
		return fmt.Errorf("geohash %q must have 1 to %d characters", hash, MaxGeohashPrecision)
	}
	for i := 0; i < len(hash); i++ {
		if strings.IndexByte(base32, hash[i]) < 0 {
			return fmt.Errorf("geohash %q: invalid character %q", hash, hash[i])
		}
	}
	return nil
}

// GeohashCellSize returns the approximate cell size in meters for a given precision
func GeohashCellSize(precision int) float64 {
	if precision < 1 || precision > MaxGeohashPrecision {
		return 0
	}
	return geohashCellSizes[precision]
}

// GeohashPrecisionForDistance returns the coarsest precision whose cells are
// no wider than distanceMeters.
func GeohashPrecisionForDistance(distanceMeters float64) int {
	for precision := 1; precision <= MaxGeohashPrecision; precision++ {
		if GeohashCellSize(precision) <= distanceMeters {
			return precision
		}
	}
	return MaxGeohashPrecision
}
