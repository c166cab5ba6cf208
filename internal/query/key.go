package query

import (
	"net/url"
	"strings"
)

// Key identifies a cached resource. Equal requests produce equal keys:
// url.Values.Encode sorts by parameter name, and set-like values must be
// normalized by the caller.
type Key string

// NewKey builds "op?encoded-values", or just op when values is empty
func NewKey(op string, values url.Values) Key {
	if len(values) == 0 {
		return Key(op)
	}
	return Key(op + "?" + values.Encode())
}

// HasPrefix reports whether the key starts with prefix
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(k), prefix)
}
