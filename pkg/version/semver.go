package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var semVerPattern = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// SemVer is a semantic version as defined by semver.org.
type SemVer struct {
	Major, Minor, Patch int64
	PreRelease          string
	Build               string
}

// Parse accepts an optional "v" prefix, as produced by git tags.
func Parse(raw string) (SemVer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SemVer{}, errors.New("version cannot be empty")
	}
	m := semVerPattern.FindStringSubmatch(raw)
	if m == nil {
		return SemVer{}, fmt.Errorf("invalid semantic version: %q", raw)
	}

	var v SemVer
	var err error
	if v.Major, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return SemVer{}, fmt.Errorf("invalid major version: %w", err)
	}
	if v.Minor, err = strconv.ParseInt(m[2], 10, 64); err != nil {
		return SemVer{}, fmt.Errorf("invalid minor version: %w", err)
	}
	if v.Patch, err = strconv.ParseInt(m[3], 10, 64); err != nil {
		return SemVer{}, fmt.Errorf("invalid patch version: %w", err)
	}
	v.PreRelease, v.Build = m[4], m[5]

	for _, id := range strings.Split(v.PreRelease, ".") {
		if len(id) > 1 && id[0] == '0' && isNumeric(id) {
			return SemVer{}, fmt.Errorf("invalid prerelease numeric identifier %q: leading zero", id)
		}
	}
	return v, nil
}

// String returns the canonical form, without the "v" prefix.
func (v SemVer) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
