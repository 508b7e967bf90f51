// Package version parses and compares the version words a Tuya BLE device
// reports during key negotiation.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// MinProtocol is the lowest device protocol version this library speaks.
// Older devices use a different key schedule and frame layout.
var MinProtocol = Version{Major: 2, Minor: 0}

// Version is a parsed "major.minor" version. Devices report each of their
// firmware, protocol, and hardware versions as a byte pair.
type Version struct {
	Major uint8
	Minor uint8
}

// FromBytes builds a version from the two raw bytes of a device report.
func FromBytes(major, minor byte) Version {
	return Version{Major: major, Minor: minor}
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || parts[1] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Version{Major: uint8(major), Minor: uint8(minor)}, nil
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0, or 1 as v sorts before, equal to, or after other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// AtLeast reports whether v is other or newer.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// Supported reports whether a device protocol version can be spoken.
func Supported(protocol Version) bool {
	return protocol.AtLeast(MinProtocol)
}
