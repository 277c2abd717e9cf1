// Package paramcache memoizes parameter lookups inside a node description.
//
// A Cache is bound to one root value (a description mapping). Lookups walk the
// root through nested maps and slices and remember every intermediate path
// they visit, so repeated lookups of a shared prefix cost one map access.
//
// Absence is not an error: a missing key or an out-of-range index yields
// found=false, which callers use to fall back to an ancestor node.
//
// A Cache is not safe for concurrent use. It is owned by exactly one node and
// only touched from the goroutine that runs the node.
package paramcache

import (
	"reflect"
	"strconv"
	"strings"
)

// Path addresses a value nested inside a description. Each segment is either
// an object key or a decimal array index.
type Path []string

// ParsePath parses the dotted/indexed notation used in diagnostics and CLI
// flags, e.g. "data.rt" or "choices[1].label".
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	var p Path
	for _, part := range strings.Split(s, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					p = append(p, part)
				}
				break
			}
			if open > 0 {
				p = append(p, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				p = append(p, part[open+1:])
				break
			}
			p = append(p, part[open+1:open+end])
			part = part[open+end+1:]
		}
	}
	return p
}

// String renders the path as `a.b[0].c`.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			if isIndex(seg) {
				b.WriteString("[" + seg + "]")
				continue
			}
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Head returns the first segment, or "" for the root path.
func (p Path) Head() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Child returns a new path extended with the given segments. The receiver is
// never aliased by the result.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) key() string {
	return strings.Join(p, ".")
}

func isIndex(seg string) bool {
	_, err := strconv.Atoi(seg)
	return err == nil
}

// Cache maps paths to their last resolved value for one node.
// An entry, once set, is authoritative until Reset.
type Cache struct {
	root    any
	entries map[string]any
}

// New creates a cache rooted at root.
func New(root any) *Cache {
	c := &Cache{root: root}
	c.Reset()
	return c
}

// Root returns the value the cache was created with.
func (c *Cache) Root() any {
	return c.root
}

// Reset discards every entry except the root.
func (c *Cache) Reset() {
	c.entries = map[string]any{"": c.root}
}

// Len reports the number of cached paths, the root included.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Has reports whether path has a cached entry.
func (c *Cache) Has(path Path) bool {
	_, ok := c.entries[path.key()]
	return ok
}

// Get returns the cached entry for path without walking the root.
func (c *Cache) Get(path Path) (any, bool) {
	v, ok := c.entries[path.key()]
	return v, ok
}

// Set stores value for path, replacing any earlier entry.
func (c *Cache) Set(path Path, value any) {
	c.entries[path.key()] = value
}

// Lookup resolves path against the cache, walking the root for any segment not
// cached yet. Every path found along the way is cached.
func (c *Cache) Lookup(path Path) (any, bool) {
	if v, ok := c.entries[path.key()]; ok {
		return v, true
	}
	if len(path) == 0 {
		return nil, false
	}

	parentPath := path[:len(path)-1]
	if !c.Has(parentPath) {
		if _, ok := c.Lookup(parentPath); !ok {
			return nil, false
		}
	}
	parent, _ := c.Get(parentPath)

	v, ok := LookupChild(parent, path[len(path)-1])
	if ok {
		c.Set(path, v)
	}
	return v, ok
}

// LookupChild returns the element named by segment inside container. Maps are
// indexed by key and slices by decimal index; anything else has no children.
func LookupChild(container any, segment string) (any, bool) {
	if container == nil {
		return nil, false
	}
	v := reflect.ValueOf(container)
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		elem := v.MapIndex(reflect.ValueOf(segment).Convert(v.Type().Key()))
		if !elem.IsValid() {
			return nil, false
		}
		return elem.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= v.Len() {
			return nil, false
		}
		return v.Index(i).Interface(), true
	default:
		return nil, false
	}
}

// IsContainer reports whether v is a map or slice that LookupChild can index.
func IsContainer(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}
