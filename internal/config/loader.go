package config

import (
	"bufio"
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

// Loader turns a config file into a Config.
type Loader interface {
	Name() string
	Load(path string) (*Config, error)
}

// Loader names, also accepted by EDGEFLOW_PARSER.
const (
	LoaderHCL      = "hcl"
	LoaderKeyValue = "kv"
)

// SelectLoader picks the loader strategy once, at startup. The structured
// HCL parser is used unless settings mark it unavailable.
func SelectLoader(s Settings, log *zap.Logger) Loader {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.EqualFold(s.Parser, LoaderKeyValue) {
		log.Debug("structured parser disabled, using key=value reader")
		return NewKeyValueLoader(log)
	}
	return NewHCLLoader(log)
}

// HCLLoader parses .ef files as HCL attribute bodies.
type HCLLoader struct {
	log *zap.Logger
}

// NewHCLLoader creates the structured loader.
func NewHCLLoader(log *zap.Logger) *HCLLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &HCLLoader{log: log}
}

func (l *HCLLoader) Name() string { return LoaderHCL }

// Load reads path and decodes every top-level attribute. Bare identifiers
// such as `quantize = int8` are read as their keyword text.
func (l *HCLLoader) Load(path string) (*Config, error) {
	source, data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, source)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing config %s: %w", source, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding config %s: %w", source, diags)
	}

	values := make(map[string]Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			if kw := hcl.ExprAsKeyword(attr.Expr); kw != "" {
				values[name] = StringValue(kw)
				continue
			}
			return nil, fmt.Errorf("evaluating %q in %s: %w", name, source, diags)
		}
		if val.IsNull() {
			continue
		}
		v, err := fromCty(val)
		if err != nil {
			return nil, fmt.Errorf("option %q in %s: %w", name, source, err)
		}
		values[name] = v
	}

	cfg := New(source, values)
	cfg.loader = l.Name()
	l.log.Debug("Loaded config", zap.String("path", source), zap.String("loader", cfg.loader), zap.Int("options", cfg.Len()))
	return cfg, nil
}

func fromCty(val cty.Value) (Value, error) {
	if !val.IsKnown() {
		return Value{}, fmt.Errorf("value is not known")
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return StringValue(val.AsString()), nil
	case ty == cty.Bool:
		return BoolValue(val.True()), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return IntValue(i), nil
			}
		}
		f, _ := bf.Float64()
		return FloatValue(f), nil
	case ty.IsTupleType() || ty.IsListType():
		// Flattened to the comma-separated form the key=value reader produces.
		parts := make([]string, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elem, err := fromCty(ev)
			if err != nil {
				return Value{}, err
			}
			parts = append(parts, elem.String())
		}
		return StringValue(strings.Join(parts, ",")), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

// KeyValueLoader is the permissive fallback: one key=value per line.
type KeyValueLoader struct {
	log *zap.Logger
}

// NewKeyValueLoader creates the fallback loader.
func NewKeyValueLoader(log *zap.Logger) *KeyValueLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyValueLoader{log: log}
}

func (l *KeyValueLoader) Name() string { return LoaderKeyValue }

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// Load splits each non-blank, non-comment line on the first '=' and keeps the
// raw string value with surrounding quotes removed. Malformed lines are
// skipped.
func (l *KeyValueLoader) Load(path string) (*Config, error) {
	source, data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]Value)
	skipped := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		key, raw, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || !keyPattern.MatchString(key) {
			skipped++
			continue
		}
		values[key] = StringValue(unquote(strings.TrimSpace(raw)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", source, err)
	}

	cfg := New(source, values)
	cfg.loader = l.Name()
	l.log.Debug("Loaded config", zap.String("path", source), zap.String("loader", cfg.loader), zap.Int("options", cfg.Len()), zap.Int("skipped_lines", skipped))
	return cfg, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func readSource(path string) (string, []byte, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return source, nil, fmt.Errorf("reading config file: %w", err)
	}
	return source, data, nil
}
