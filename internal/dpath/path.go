// Package dpath implements Path, the canonical hierarchical path value
// used to address every node in the naming server's directory tree.
package dpath

import (
	"fmt"
	"strings"
)

// Path is an immutable, ordered sequence of non-empty path components
// rooted at "/". Two paths are equal iff their component sequences are
// equal. The zero value is the root path, the same value Root() returns.
type Path struct {
	components []string
}

// Root returns the path "/".
func Root() Path {
	return Path{}
}

// Parse splits s on "/", discarding empty components (so leading,
// trailing, and repeated slashes collapse), and rejects components
// containing ':'. "/a//b/" parses the same as "/a/b".
func Parse(s string) (Path, error) {
	var components []string
	for _, c := range strings.Split(s, "/") {
		if c == "" {
			continue
		}
		if strings.Contains(c, ":") {
			return Path{}, fmt.Errorf("dpath: invalid component %q: contains ':'", c)
		}
		components = append(components, c)
	}
	return Path{components: components}, nil
}

// MustParse is Parse but panics on error; useful for constants in tests
// and well-known paths.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join returns the path formed by appending a single component to p.
func (p Path) Join(component string) (Path, error) {
	if component == "" || strings.Contains(component, ":") || strings.Contains(component, "/") {
		return Path{}, fmt.Errorf("dpath: invalid component %q", component)
	}
	next := make([]string, len(p.components)+1)
	copy(next, p.components)
	next[len(p.components)] = component
	return Path{components: next}, nil
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Components returns the path's components in order. The returned slice
// must not be mutated by callers.
func (p Path) Components() []string {
	return p.components
}

// Last returns the final component of p. Undefined (returns "") on root.
func (p Path) Last() string {
	if p.IsRoot() {
		return ""
	}
	return p.components[len(p.components)-1]
}

// Parent removes the last component of p. It is undefined to call Parent
// on the root path; callers must check IsRoot first.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	return Path{components: p.components[:len(p.components)-1]}
}

// IsSubpath reports whether other's components are a prefix of p's, i.e.
// other is an ancestor of (or equal to) p.
func (p Path) IsSubpath(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Ancestors returns every strict ancestor of p, root first, ending with
// p's immediate parent. Empty for the root path.
func (p Path) Ancestors() []Path {
	if p.IsRoot() {
		return nil
	}
	var out []Path
	cur := Root()
	out = append(out, cur)
	for i := 0; i < len(p.components)-1; i++ {
		cur, _ = cur.Join(p.components[i])
		out = append(out, cur)
	}
	return out
}

// String renders the canonical textual form, e.g. "/a/b", with root as
// "/".
func (p Path) String() string {
	if p.IsRoot() {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}

// Equals reports whether p and other have identical component sequences.
func (p Path) Equals(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// Compare defines the total order used for deadlock-free multi-path
// locking: a path always precedes any proper descendant (parents sort
// before their children), and otherwise paths are ordered lexicographically
// component by component. This follows the specification's documented
// intent rather than a naive subpath-only comparison, which would not be
// transitive.
func (p Path) Compare(other Path) int {
	a, b := p.components, other.components
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Less reports whether p sorts before other under Compare, so a slice of
// Paths can be sorted with sort.Slice.
func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// GobEncode implements gob.GobEncoder so Path can be sent as an RPC
// argument or return value; its wire representation is just the rendered
// string, re-parsed on the other end.
func (p Path) GobEncode() ([]byte, error) {
	return []byte(p.String()), nil
}

// GobDecode implements gob.GobDecoder.
func (p *Path) GobDecode(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
