package feature

import (
	"strconv"
	"strings"
)

// CompareVersions compares dotted numeric versions with optional pre-release
// suffixes ("1.2.0-beta.1"). A pre-release sorts below its base version.
// Build metadata after "+" and a leading "v" are ignored. ok is false when
// either side cannot be parsed.
func CompareVersions(a, b string) (cmp int, ok bool) {
	ac, apre, ok := splitVersion(a)
	if !ok {
		return 0, false
	}
	bc, bpre, ok := splitVersion(b)
	if !ok {
		return 0, false
	}

	for i := range max(len(ac), len(bc)) {
		var x, y int
		if i < len(ac) {
			x = ac[i]
		}
		if i < len(bc) {
			y = bc[i]
		}
		if x != y {
			if x < y {
				return -1, true
			}
			return 1, true
		}
	}

	switch {
	case apre == "" && bpre == "":
		return 0, true
	case apre == "":
		return 1, true
	case bpre == "":
		return -1, true
	}
	return comparePrerelease(apre, bpre), true
}

func splitVersion(v string) ([]int, string, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	var pre string
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v, pre = v[:i], v[i+1:]
	}
	if v == "" {
		return nil, "", false
	}

	parts := strings.Split(v, ".")
	core := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, "", false
		}
		core[i] = n
	}
	return core, pre, true
}

// comparePrerelease follows semver precedence: numeric identifiers compare
// numerically and sort below alphanumeric ones; a shorter list of equal
// identifiers sorts first.
func comparePrerelease(a, b string) int {
	ap, bp := strings.Split(a, "."), strings.Split(b, ".")
	for i := range min(len(ap), len(bp)) {
		an, aerr := strconv.Atoi(ap[i])
		bn, berr := strconv.Atoi(bp[i])
		switch {
		case aerr == nil && berr == nil:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		default:
			if c := strings.Compare(ap[i], bp[i]); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(ap) < len(bp):
		return -1
	case len(ap) > len(bp):
		return 1
	}
	return 0
}
