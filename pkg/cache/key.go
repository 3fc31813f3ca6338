package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies a cached upstream request.
type Key struct {
	// Prefix names the logical resource (e.g. "simple-price").
	Prefix string

	// Params are the request parameters (e.g. {"ids": "bitcoin", "vs": "usd"}).
	Params map[string]string
}

// NewKey builds a key for a resource prefix and its parameters.
func NewKey(prefix string, params map[string]string) Key {
	return Key{Prefix: prefix, Params: params}
}

// String generates a deterministic key string.
// Format: prefix:param1=val1:param2=val2
//
// Parameter names are sorted, so two logically identical requests always
// produce the same key regardless of map construction order. The manager
// prepends its namespace before a key touches either tier.
//
// Example:
//
//	simple-price:ids=bitcoin:vs=usd
func (k Key) String() string {
	parts := []string{strings.Trim(k.Prefix, ":")}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return strings.Join(parts, ":")
}
