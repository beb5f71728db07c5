package linker

import (
	"strings"

	semver "github.com/coreos/go-semver/semver"

	"github.com/wippyai/wasm-trampoline/errors"
)

// Version is a semantic version. Build metadata is discarded on parse.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
	Pre   string
}

// ParseVersion parses a version string like "1.2.3", "0.2", "1" or
// "1.0.0-rc.1". Missing minor and patch components are zero.
func ParseVersion(s string) (Version, bool) {
	if s == "" {
		return Version{}, false
	}

	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	var pre string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s, pre = s[:i], s[i+1:]
		if pre == "" {
			return Version{}, false
		}
		// delegate identifier validation to the semver grammar
		if _, err := semver.NewVersion("0.0.0-" + pre); err != nil {
			return Version{}, false
		}
	}

	v := Version{Pre: pre}
	parts := strings.Split(s, ".")
	if len(parts) < 1 || len(parts) > 3 {
		return Version{}, false
	}

	for i, p := range parts {
		if p == "" {
			return Version{}, false
		}
		var n uint32
		for _, c := range p {
			if c < '0' || c > '9' {
				return Version{}, false
			}
			// Check for overflow before multiplication
			if n > 429496729 || (n == 429496729 && c > '5') {
				return Version{}, false
			}
			n = n*10 + uint32(c-'0')
		}
		switch i {
		case 0:
			v.Major = n
		case 1:
			v.Minor = n
		case 2:
			v.Patch = n
		}
	}
	return v, true
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, ok := ParseVersion(s)
	if !ok {
		panic("linker: invalid version " + s)
	}
	return v
}

// Compare returns -1, 0 or +1. A pre-release sorts below its release.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	case v.Patch != o.Patch:
		return cmpUint(v.Patch, o.Patch)
	case v.Pre == o.Pre:
		return 0
	}
	return v.semver().Compare(o.semver())
}

func (v Version) semver() semver.Version {
	return semver.Version{
		Major:      int64(v.Major),
		Minor:      int64(v.Minor),
		Patch:      int64(v.Patch),
		PreRelease: semver.PreRelease(v.Pre),
	}
}

func cmpUint(a, b uint32) int {
	if a < b {
		return -1
	}
	return 1
}

// Compatible returns true if v is semver-compatible with want.
// Compatible means same major and v >= want. A pre-release is only
// compatible with itself.
func (v Version) Compatible(want Version) bool {
	if v.Major != want.Major {
		return false
	}
	if v.Pre != "" {
		return v == want
	}
	return v.Compare(want) >= 0
}

// String returns the version as "major.minor.patch[-pre]"
func (v Version) String() string {
	s := strings.Join([]string{
		uintToStr(v.Major),
		uintToStr(v.Minor),
		uintToStr(v.Patch),
	}, ".")
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

func uintToStr(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// RequirementKind selects how a Requirement matches versions.
type RequirementKind uint8

const (
	// RequireAny matches every version; resolution picks the highest.
	RequireAny RequirementKind = iota
	// RequireExact matches one version.
	RequireExact
	// RequireCompatible matches the same major at or above the version.
	RequireCompatible
)

// Requirement is the version constraint of an import.
type Requirement struct {
	Kind    RequirementKind
	Version Version
}

// Any returns the unconstrained requirement.
func Any() Requirement { return Requirement{Kind: RequireAny} }

// Exact returns a requirement matching only v.
func Exact(v Version) Requirement { return Requirement{Kind: RequireExact, Version: v} }

// Caret returns a requirement matching versions compatible with v.
func Caret(v Version) Requirement { return Requirement{Kind: RequireCompatible, Version: v} }

// ParseRequirement parses "", "*", "=1.2.3", "^1.2.3" or a bare "1.2.3"
// (compatible).
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	kind := RequireCompatible
	switch s[0] {
	case '=':
		kind, s = RequireExact, s[1:]
	case '^':
		s = s[1:]
	}

	v, ok := ParseVersion(s)
	if !ok {
		return Requirement{}, errors.InvalidInput(errors.PhaseParse, s, "invalid version requirement")
	}
	return Requirement{Kind: kind, Version: v}, nil
}

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	switch r.Kind {
	case RequireAny:
		return true
	case RequireExact:
		return v == r.Version
	default:
		return v.Compatible(r.Version)
	}
}

// Strict returns the requirement with compatible matching narrowed to exact.
func (r Requirement) Strict() Requirement {
	if r.Kind == RequireCompatible {
		r.Kind = RequireExact
	}
	return r
}

// String returns "*", "=1.2.3" or "^1.2.3".
func (r Requirement) String() string {
	switch r.Kind {
	case RequireAny:
		return "*"
	case RequireExact:
		return "=" + r.Version.String()
	default:
		return "^" + r.Version.String()
	}
}
