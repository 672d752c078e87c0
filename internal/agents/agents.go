// Package agents holds the four model-backed roles of the story pipeline:
// developmental profiling, guardian message analysis, story composition and safety validation.
package agents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidOutput is returned when the model answer cannot be decoded into the expected shape
var ErrInvalidOutput = errors.New("invalid model output")

// Options controls failure handling for a single call
type Options struct {
	// Fallback returns a deterministic result instead of an error when the model call fails
	Fallback bool
}

// CoreValues is the fixed value priority list sent with every analysis prompt
var CoreValues = []string{
	"Saygı", "Yardımlaşma", "Dürüstlük", "Sorumluluk",
	"Aile bağları", "Misafirperverlik", "Çalışkanlık", "Sabır",
}

func decode(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// flexList accepts a JSON array of strings, a single string or an object.
// Models drift between these shapes for the same field.
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	switch data[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := scalarString(obj[k]); s != "" {
				out = append(out, k+": "+s)
			}
		}
		*l = out
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s != "" {
			*l = []string{s}
		}
	default:
		return fmt.Errorf("unexpected list value %s", data)
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// flexNumber accepts a JSON number or a string such as "15-20 dakika".
// All numbers found are kept so callers can pick the bound they need.
type flexNumber struct {
	values []float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		n.values = []float64{f}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, m := range numberPattern.FindAllString(s, -1) {
		if f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64); err == nil {
			n.values = append(n.values, f)
		}
	}
	return nil
}

func (n flexNumber) ok() bool { return len(n.values) > 0 }

// mean of the parsed numbers; "3-5" gives 4
func (n flexNumber) mean() float64 {
	if len(n.values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range n.values {
		sum += v
	}
	return sum / float64(len(n.values))
}

func (n flexNumber) max() float64 {
	out := 0.0
	for _, v := range n.values {
		if v > out {
			out = v
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mergeUnique appends items of b not already in a, preserving order
func mergeUnique(a []string, b ...string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func orDefault(list []string, def ...string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}
