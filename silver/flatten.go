package silver

import (
	"strings"

	"realestate_ai/jsonval"
)

const (
	// Separator joins nested keys in flattened column names.
	Separator = "__"
	// IgnoredKey is dropped at every nesting level.
	IgnoredKey = "__typename"
)

// Record is one flattened listing: column name to JSON value.
type Record map[string]jsonval.Value

// Flatten walks node and writes its leaves into out. Maps recurse with
// prefix+key+Separator, skipping IgnoredKey. Lists are stored whole and are
// not descended into. Scalars and null are stored under the prefix with its
// trailing separator trimmed, so a null node yields exactly one null key.
func Flatten(node jsonval.Value, prefix string, out Record) {
	if m, ok := node.Map(); ok {
		for _, k := range node.Keys() {
			if k == IgnoredKey {
				continue
			}
			Flatten(m[k], prefix+k+Separator, out)
		}
		return
	}
	out[strings.TrimSuffix(prefix, Separator)] = node
}
