// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"strings"
)

const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"
)

// Overridden at build time, e.g.
// go build -ldflags="-X github.com/nimburion/movies/pkg/version.AppVersion=v1.2.3"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info is served by the management /version endpoint and printed by the
// version command.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the build metadata for serviceName.
func Current(serviceName string) Info {
	return Info{
		Service:   orDefault(serviceName, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
	}
}

// APIVersion is the version published in the API document. Release builds
// use their canonical semantic version; anything else becomes a 0.0.0
// pre-release tagged with the sanitized build version.
func (i Info) APIVersion() string {
	if v, err := Parse(i.Version); err == nil {
		return v.String()
	}
	tag := preReleaseTag(i.Version)
	if tag == "" {
		tag = DevelopmentVersion
	}
	return SemVer{PreRelease: tag}.String()
}

func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s)", i.Service, i.Version, i.Commit, i.BuildTime)
}

func orDefault(v, fallback string) string {
	if norm := strings.TrimSpace(v); norm != "" {
		return norm
	}
	return fallback
}

// preReleaseTag keeps the characters allowed in a pre-release identifier and
// turns everything else into dots, dropping empty identifiers.
func preReleaseTag(raw string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '.'
		}
	}, strings.TrimSpace(raw))

	var ids []string
	for _, id := range strings.Split(mapped, ".") {
		if id == "" {
			continue
		}
		if isNumeric(id) {
			id = strings.TrimLeft(id, "0")
			if id == "" {
				id = "0"
			}
		}
		ids = append(ids, id)
	}
	return strings.Join(ids, ".")
}
