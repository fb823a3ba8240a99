// Package version detects the target's Ruby version from the
// `ruby_version` C string symbol, read and parsed into a semver-ish
// triple that the rest of the engine dispatches on.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is MAJOR.MINOR.PATCH, comparable without needing a full semver
// library — rbspy itself only ever compares against a short, fixed list
// of version boundaries (2.5.0, 2.7.0, 3.0.0, ...).
type Version struct {
	Major, Minor, Patch int
}

// Parse reads a string like "2.6.3" or "2.6.3p62" (ignore any patchlevel
// suffix after the first non [0-9.] character) into a Version.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	end := len(s)
	for i, c := range s {
		if !(c >= '0' && c <= '9') && c != '.' {
			end = i
			break
		}
	}
	core := s[:end]
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version.Parse: %q isn't MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("version.Parse: %q: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return sign(v.Major - other.Major)
	}
	if v.Minor != other.Minor {
		return sign(v.Minor - other.Minor)
	}
	return sign(v.Patch - other.Patch)
}

func (v Version) GTE(other Version) bool { return v.Compare(other) >= 0 }
func (v Version) LT(other Version) bool  { return v.Compare(other) < 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// MustParse is for version literals used internally (dispatch tables);
// it panics on malformed input, which would be a programmer error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
