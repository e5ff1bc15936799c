// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package apm

// ContextValue is the sum type spec §9 calls for in place of the original's
// variadic key-path calls: "Re-model as an explicit path (ordered sequence
// of strings) plus a value sum type string | number."
type ContextValue struct {
	str      string
	num      float64
	isString bool
}

// StringValue wraps a string context value.
func StringValue(s string) ContextValue { return ContextValue{str: s, isString: true} }

// NumberValue wraps a numeric context value.
func NumberValue(n float64) ContextValue { return ContextValue{num: n} }

// Context is a free-form hierarchical key/value map used for span
// protocol-specific attributes (HTTP status, destination, etc. — spec §3).
// Grounded on apm_span.c's trrmap-backed variadic context accumulation,
// re-modeled as an explicit nested map per spec §9.
type Context struct {
	root map[string]interface{}
}

// newContext lazily allocates nothing until the first Set call, mirroring
// apm_add_str_to_span_context's "create the map on first use" behavior.
func newContext() *Context { return &Context{} }

// Set stores value at the given ordered key path, creating intermediate
// maps as needed. An empty path is a no-op.
func (c *Context) Set(path []string, value ContextValue) {
	if c == nil || len(path) == 0 {
		return
	}
	if c.root == nil {
		c.root = make(map[string]interface{})
	}
	m := c.root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[key] = next
		}
		m = next
	}
	leaf := path[len(path)-1]
	if value.isString {
		m[leaf] = value.str
	} else {
		m[leaf] = value.num
	}
}

// IsEmpty reports whether no entries were ever recorded — used to omit the
// context block from serialized output (spec §4.3's omission rules).
func (c *Context) IsEmpty() bool {
	return c == nil || len(c.root) == 0
}

// Map returns the raw nested map for serialization, or nil when empty.
func (c *Context) Map() map[string]interface{} {
	if c.IsEmpty() {
		return nil
	}
	return c.root
}
