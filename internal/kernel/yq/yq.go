// Package yq bridges YAML documents into the jq data model and back. The
// YAML reader handles scalars, block and flow collections, anchors/aliases
// and merge keys; queries run on the converted tree through the jq engine.
package yq

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runshield/bashx/internal/kernel/jq"
)

// Decode parses one YAML document into the jq data model: string-keyed
// maps, []any sequences, float64 numbers.
func Decode(input string) (any, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(input), &raw); err != nil {
		return nil, fmt.Errorf("yq: %w", err)
	}
	return normalize(raw), nil
}

// normalize converts YAML decoding artifacts into the jq model.
func normalize(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, el := range tv {
			out[i] = normalize(el)
		}
		return out
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	case uint64:
		return float64(tv)
	case float32:
		return float64(tv)
	}
	return v
}

// Query runs a jq-style expression over the document.
func Query(doc any, expr string, vars map[string]any) ([]any, error) {
	q, err := jq.Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Run(doc, vars)
}

// ---------------------------------------------------------------------------
// path assignment / deletion — .a.b[0] = value, del(.a.b)
// ---------------------------------------------------------------------------

type pathStep struct {
	key   string
	index int
	isIdx bool
}

// parsePath parses a restricted path: .a.b[0].c
func parsePath(expr string) ([]pathStep, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, ".") {
		return nil, fmt.Errorf("yq: path must start with '.': %q", expr)
	}
	var steps []pathStep
	i := 1
	for i < len(expr) {
		switch {
		case expr[i] == '.':
			i++
		case expr[i] == '[':
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("yq: unterminated index in %q", expr)
			}
			n, err := strconv.Atoi(expr[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("yq: bad index in %q", expr)
			}
			steps = append(steps, pathStep{index: n, isIdx: true})
			i += end + 1
		default:
			j := i
			for j < len(expr) && expr[j] != '.' && expr[j] != '[' {
				j++
			}
			steps = append(steps, pathStep{key: expr[i:j]})
			i = j
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("yq: empty path")
	}
	return steps, nil
}

// Assign sets path to value, creating intermediate maps, and returns the
// updated document.
func Assign(doc any, pathExpr string, value any) (any, error) {
	steps, err := parsePath(pathExpr)
	if err != nil {
		return nil, err
	}
	return assignSteps(doc, steps, value)
}

func assignSteps(doc any, steps []pathStep, value any) (any, error) {
	if len(steps) == 0 {
		return value, nil
	}
	step := steps[0]
	if step.isIdx {
		arr, okA := doc.([]any)
		if !okA {
			if doc == nil {
				arr = []any{}
			} else {
				return nil, fmt.Errorf("yq: cannot index %T", doc)
			}
		}
		for len(arr) <= step.index {
			arr = append(arr, nil)
		}
		sub, err := assignSteps(arr[step.index], steps[1:], value)
		if err != nil {
			return nil, err
		}
		arr[step.index] = sub
		return arr, nil
	}
	obj, okO := doc.(map[string]any)
	if !okO {
		if doc != nil {
			return nil, fmt.Errorf("yq: cannot set key on %T", doc)
		}
		obj = map[string]any{}
	}
	sub, err := assignSteps(obj[step.key], steps[1:], value)
	if err != nil {
		return nil, err
	}
	obj[step.key] = sub
	return obj, nil
}

// Delete removes the value at path and returns the updated document.
func Delete(doc any, pathExpr string) (any, error) {
	steps, err := parsePath(pathExpr)
	if err != nil {
		return nil, err
	}
	return deleteSteps(doc, steps)
}

func deleteSteps(doc any, steps []pathStep) (any, error) {
	step := steps[0]
	if step.isIdx {
		arr, okA := doc.([]any)
		if !okA {
			return doc, nil
		}
		if step.index < 0 || step.index >= len(arr) {
			return doc, nil
		}
		if len(steps) == 1 {
			return append(arr[:step.index], arr[step.index+1:]...), nil
		}
		sub, err := deleteSteps(arr[step.index], steps[1:])
		if err != nil {
			return nil, err
		}
		arr[step.index] = sub
		return arr, nil
	}
	obj, okO := doc.(map[string]any)
	if !okO {
		return doc, nil
	}
	if len(steps) == 1 {
		delete(obj, step.key)
		return obj, nil
	}
	sub, err := deleteSteps(obj[step.key], steps[1:])
	if err != nil {
		return nil, err
	}
	obj[step.key] = sub
	return obj, nil
}

// ParseValue interprets the right-hand side of an assignment: quoted
// strings, JSON literals, numbers, booleans, null, else a bare string.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	switch s {
	case "null", "~":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if len(s) > 0 && (s[0] == '[' || s[0] == '{') {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return normalize(v)
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// encoders
// ---------------------------------------------------------------------------

// Encode renders a value in one of the yq output formats:
// yaml (default), json, props, csv.
func Encode(v any, format string) (string, error) {
	switch format {
	case "", "yaml":
		data, err := yaml.Marshal(denormalize(v))
		if err != nil {
			return "", fmt.Errorf("yq: %w", err)
		}
		return string(data), nil
	case "json":
		return jq.Encode(v, "") + "\n", nil
	case "props":
		var sb strings.Builder
		writeProps(&sb, "", v)
		return sb.String(), nil
	case "csv":
		return encodeCSV(v)
	default:
		return "", fmt.Errorf("yq: unknown output format %q", format)
	}
}

// denormalize turns integral float64s back into ints so YAML output stays
// round-trippable.
func denormalize(v any) any {
	switch tv := v.(type) {
	case float64:
		if tv == math.Trunc(tv) && math.Abs(tv) < 1e15 {
			return int64(tv)
		}
		return tv
	case []any:
		out := make([]any, len(tv))
		for i, el := range tv {
			out[i] = denormalize(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, el := range tv {
			out[k] = denormalize(el)
		}
		return out
	}
	return v
}

func writeProps(sb *strings.Builder, prefix string, v any) {
	switch tv := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			writeProps(sb, p, tv[k])
		}
	case []any:
		for i, el := range tv {
			writeProps(sb, fmt.Sprintf("%s.%d", prefix, i), el)
		}
	default:
		fmt.Fprintf(sb, "%s = %s\n", prefix, scalarString(v))
	}
}

func scalarString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		if tv == math.Trunc(tv) {
			return strconv.FormatInt(int64(tv), 10)
		}
		return strconv.FormatFloat(tv, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	}
	return fmt.Sprintf("%v", v)
}

// encodeCSV accepts an array of flat objects (header from sorted keys of
// the first row) or an array of arrays.
func encodeCSV(v any) (string, error) {
	arr, okA := v.([]any)
	if !okA {
		return "", fmt.Errorf("yq: csv output requires an array")
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if len(arr) == 0 {
		w.Flush()
		return sb.String(), nil
	}
	if first, okO := arr[0].(map[string]any); okO {
		keys := make([]string, 0, len(first))
		for k := range first {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := w.Write(keys); err != nil {
			return "", err
		}
		for _, row := range arr {
			obj, okR := row.(map[string]any)
			if !okR {
				return "", fmt.Errorf("yq: csv rows must all be objects")
			}
			record := make([]string, len(keys))
			for i, k := range keys {
				record[i] = scalarString(obj[k])
			}
			if err := w.Write(record); err != nil {
				return "", err
			}
		}
		w.Flush()
		return sb.String(), w.Error()
	}
	for _, row := range arr {
		cells, okR := row.([]any)
		if !okR {
			return "", fmt.Errorf("yq: csv rows must all be arrays")
		}
		record := make([]string, len(cells))
		for i, cell := range cells {
			record[i] = scalarString(cell)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
