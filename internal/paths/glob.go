// Package paths implements pathspec matching for leases and protected
// paths. Pathspecs are repository-relative literal paths or shell globs
// with *, ?, and ** over /-separated segments.
package paths

import (
	"strings"

	"github.com/gobwas/glob"
)

// MatchGlob checks if a path matches a glob pattern.
// Supports *, ?, and ** patterns; * and ? do not cross /.
// A pattern with no glob characters matches only the identical path.
func MatchGlob(pattern, path string) bool {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return false
	}
	return g.Match(path)
}

// Compile compiles a pathspec for repeated matching
func Compile(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern, '/')
}

// IsGlobPattern checks if a string contains glob characters
func IsGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// LiteralPrefix returns the leading literal portion of a pattern, up to
// the first glob metacharacter. For a literal path this is the whole path.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?[{\\"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Overlaps reports whether two pathspecs can both refer to at least one
// common path. It is symmetric and reflexive, and is guaranteed to hold
// whenever one side is a literal path matched by the other side.
//
// For two globs this is a sound over-approximation: the two patterns are
// treated as overlapping whenever either one's literal prefix is a prefix
// of the other's.
func Overlaps(a, b string) bool {
	if a == b {
		return true
	}
	if !IsGlobPattern(b) && MatchGlob(a, b) {
		return true
	}
	if !IsGlobPattern(a) && MatchGlob(b, a) {
		return true
	}
	pa, pb := LiteralPrefix(a), LiteralPrefix(b)
	return strings.HasPrefix(pa, pb) || strings.HasPrefix(pb, pa)
}
