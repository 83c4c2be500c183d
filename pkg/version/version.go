// Package version wraps Masterminds/semver with the interval range syntax
// used by module metadata.
//
// Versions follow semantic versioning with lenient coercion: "4" and "4.0"
// parse as "4.0.0". Ranges come in two forms:
//
//   - Interval notation: "[1.0,2.0)" includes 1.0.0 and excludes 2.0.0.
//     Square brackets are inclusive, parentheses exclusive.
//   - A bare version: "1.2" means "at least 1.2.0" (an open upper bound).
//
// The empty string and "*" match every version.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/yarmol/bnd/pkg/errors"
)

// Version is an immutable semantic version.
type Version struct {
	v *semver.Version
}

// Parse parses a version string. Partial versions are coerced
// ("4" becomes "4.0.0").
func Parse(s string) (Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeInvalidVersion, err, "parse version %q", s)
	}
	return Version{v: v}, nil
}

// MustParse parses a version string and panics on failure.
// Intended for tests and package-level constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero Version (never parsed).
func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0 or +1 when v is less than, equal to or greater
// than o. The zero Version compares less than any parsed version.
func (v Version) Compare(o Version) int {
	switch {
	case v.v == nil && o.v == nil:
		return 0
	case v.v == nil:
		return -1
	case o.v == nil:
		return 1
	}
	return v.v.Compare(o.v)
}

// String returns the canonical version string, or "" for the zero Version.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Range is a version interval.
type Range struct {
	c   *semver.Constraints
	raw string
}

// AnyRange matches every version.
var AnyRange = Range{}

// ParseRange parses a range expression. Accepted forms:
//
//	""            every version
//	"*"           every version
//	"1.2"         >=1.2.0
//	"[1.0,2.0)"   >=1.0.0, <2.0.0
//	"(1.0,2.0]"   >1.0.0, <=2.0.0
func ParseRange(s string) (Range, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || raw == "*" {
		return AnyRange, nil
	}

	expr := raw
	if isInterval(raw) {
		var err error
		expr, err = intervalToConstraint(raw)
		if err != nil {
			return Range{}, err
		}
	} else {
		// A bare version is an open lower bound.
		if _, err := semver.NewVersion(raw); err == nil {
			expr = ">=" + raw
		}
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return Range{}, errors.Wrap(errors.ErrCodeInvalidRange, err, "parse range %q", raw)
	}
	return Range{c: c, raw: raw}, nil
}

// MustParseRange parses a range expression and panics on failure.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Includes reports whether v lies within the range. The unbounded range
// includes everything except the zero Version.
func (r Range) Includes(v Version) bool {
	if v.v == nil {
		return false
	}
	if r.c == nil {
		return true
	}
	return r.c.Check(v.v)
}

// String returns the range as originally written, or "*" for the
// unbounded range.
func (r Range) String() string {
	if r.c == nil {
		return "*"
	}
	return r.raw
}

func isInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	openOK := s[0] == '[' || s[0] == '('
	closeOK := s[len(s)-1] == ']' || s[len(s)-1] == ')'
	return openOK && closeOK
}

// intervalToConstraint rewrites "[1.0,2.0)" style intervals into the
// comma-separated comparator form Masterminds understands.
func intervalToConstraint(s string) (string, error) {
	inner := s[1 : len(s)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return "", errors.New(errors.ErrCodeInvalidRange, "interval %q must have a lower and upper bound", s)
	}
	lo, hi := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	var b strings.Builder
	if s[0] == '[' {
		b.WriteString(">=")
	} else {
		b.WriteString(">")
	}
	b.WriteString(lo)
	if hi != "" {
		b.WriteString(", ")
		if s[len(s)-1] == ']' {
			b.WriteString("<=")
		} else {
			b.WriteString("<")
		}
		b.WriteString(hi)
	}
	return b.String(), nil
}
