package indicator

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Params holds indicator parameters as loosely-typed values so overrides
// can come straight from JSON or YAML. Typed getters coerce the numeric
// types those decoders produce (float64, int).
type Params map[string]any

// Merge returns defaults overlaid with overrides. Neither input is mutated.
func Merge(defaults, overrides Params) Params {
	out := make(Params, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Int returns the named parameter as an int, or def when absent or
// not coercible.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the named parameter as a float64, or def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// String returns the named parameter as a string, or def.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Ints returns the named parameter as an int slice, or def. Accepts
// []int directly and []any as produced by JSON/YAML decoding.
func (p Params) Ints(key string, def []int) []int {
	switch v := p[key].(type) {
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]int, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			default:
				return def
			}
		}
		return out
	}
	return def
}

// Canonical renders the params as deterministic JSON with sorted keys,
// used for cache fingerprinting.
func (p Params) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(p[k])
		if err != nil {
			vb = []byte(fmt.Sprintf("%q", fmt.Sprint(p[k])))
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return string(append(buf, '}'))
}
