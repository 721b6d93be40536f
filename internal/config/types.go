package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Extension is the recognized configuration file suffix, matched case-insensitively.
const Extension = ".ef"

// ValueKind identifies the dynamic type held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
)

// Value is a single option value: a string, an integer, a float or a boolean.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func (v Value) Kind() ValueKind { return v.kind }

// String renders the value the way it would appear unquoted in a config file.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Int returns the value as an integer. Strings are parsed, so options read by
// the key=value fallback (always strings) behave the same as typed ones.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f), true
		}
		return 0, false
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Float returns the value as a float64, parsing strings.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the value as a boolean, parsing strings.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		return b, err == nil
	default:
		return false, false
	}
}

// Interface returns the underlying Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return v.s
	}
}

// Config is a loaded edge-deployment configuration. It is never mutated after
// a Loader returns it; accessors hand out copies.
type Config struct {
	values map[string]Value
	source string
	loader string
}

// New builds a Config from values. The map is copied.
func New(source string, values map[string]Value) *Config {
	c := &Config{values: make(map[string]Value, len(values)), source: source}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Source is the resolved path the config was read from. Diagnostics only.
func (c *Config) Source() string { return c.source }

// LoadedBy names the loader strategy that produced the config.
func (c *Config) LoadedBy() string { return c.loader }

// Len returns the number of options.
func (c *Config) Len() int { return len(c.values) }

// Get returns the value for key.
func (c *Config) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// String returns the string form of key, or "" when unset.
func (c *Config) String(key string) string {
	v, ok := c.values[key]
	if !ok {
		return ""
	}
	return v.String()
}

// Keys returns option names in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the options as plain Go values.
func (c *Config) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v.Interface()
	}
	return out
}

// Model returns the referenced model path. The legacy model_path key is
// accepted when model is absent.
func (c *Config) Model() string {
	if m := c.String("model"); m != "" {
		return m
	}
	return c.String("model_path")
}

func (c *Config) GoString() string {
	return fmt.Sprintf("config.Config{source: %q, keys: %v}", c.source, c.Keys())
}
