package anyvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"
)

// wireFloat is a float64 whose JSON form also covers NaN and the
// infinities, written as the strings "NaN", "+Inf" and "-Inf".
type wireFloat float64

func (f wireFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)
	switch {
	case math.IsNaN(x):
		return []byte(`"NaN"`), nil
	case math.IsInf(x, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(x)
}

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = wireFloat(math.NaN())
		case "+Inf":
			*f = wireFloat(math.Inf(1))
		case "-Inf":
			*f = wireFloat(math.Inf(-1))
		default:
			return fmt.Errorf("anyvalue: invalid float %q", s)
		}
		return nil
	}
	x, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("anyvalue: invalid float %s", data)
	}
	*f = wireFloat(x)
	return nil
}

// wireString is a string whose JSON form keeps its exact bytes. Valid UTF-8
// is written as a JSON string; anything else as {"bytes":"<base64>"}.
type wireString string

type rawString struct {
	Bytes []byte `json:"bytes"`
}

func (s wireString) MarshalJSON() ([]byte, error) {
	if utf8.ValidString(string(s)) {
		return json.Marshal(string(s))
	}
	return json.Marshal(rawString{Bytes: []byte(s)})
}

func (s *wireString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var raw rawString
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = wireString(raw.Bytes)
		return nil
	}
	var x string
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	*s = wireString(x)
	return nil
}

// wirePair is one entry of a string-keyed map whose keys are not all valid
// UTF-8 and so cannot be JSON object names.
type wirePair[W any] struct {
	Key   wireString `json:"k"`
	Value W          `json:"v"`
}

func toWireFloat(x float64) wireFloat { return wireFloat(x) }
func fromWireFloat(f wireFloat) float64 { return float64(f) }
func toWireString(s string) wireString { return wireString(s) }
func fromWireString(s wireString) string { return string(s) }
func same[T any](x T) T { return x }

func convSlice[A, B any](xs []A, conv func(A) B) []B {
	if xs == nil {
		return nil
	}
	out := make([]B, len(xs))
	for i, x := range xs {
		out[i] = conv(x)
	}
	return out
}

// viaWire builds a JSON codec for T that goes through the wire type W.
func viaWire[T, W any](to func(T) W, from func(W) T) RegisterOption {
	return WithCodec(
		func(v T) ([]byte, error) { return json.Marshal(to(v)) },
		func(data []byte) (T, error) {
			var w W
			if err := json.Unmarshal(data, &w); err != nil {
				var zero T
				return zero, err
			}
			return from(w), nil
		},
	)
}

// stringMapCodec encodes a string-keyed map as a JSON object, or as a list
// of pairs sorted by key when some key is not valid UTF-8.
func stringMapCodec[V, W any](to func(V) W, from func(W) V) RegisterOption {
	return WithCodec(
		func(m map[string]V) ([]byte, error) { return marshalStringMap(m, to) },
		func(data []byte) (map[string]V, error) { return unmarshalStringMap(data, from) },
	)
}

func marshalStringMap[V, W any](m map[string]V, to func(V) W) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	valid := true
	for k := range m {
		if !utf8.ValidString(k) {
			valid = false
			break
		}
	}
	if valid {
		out := make(map[string]W, len(m))
		for k, v := range m {
			out[k] = to(v)
		}
		return json.Marshal(out)
	}
	pairs := make([]wirePair[W], 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, wirePair[W]{Key: wireString(k), Value: to(m[k])})
	}
	return json.Marshal(pairs)
}

func unmarshalStringMap[V, W any](data []byte, from func(W) V) (map[string]V, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var pairs []wirePair[W]
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, err
		}
		out := make(map[string]V, len(pairs))
		for _, p := range pairs {
			out[string(p.Key)] = from(p.Value)
		}
		return out, nil
	}
	var in map[string]W
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	out := make(map[string]V, len(in))
	for k, w := range in {
		out[k] = from(w)
	}
	return out, nil
}
