package hrflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToPtr returns a pointer to the given value.
func ToPtr[T any](v T) *T {
	return &v
}

// ToPayload converts a typed value into a generic payload map by
// round-tripping it through JSON.
func ToPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return payload, nil
}

// DecodePayload converts a generic payload value into T
func DecodePayload[T any](v any) (T, error) {
	var result T
	data, err := json.Marshal(v)
	if err != nil {
		return result, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to decode payload: %w", err)
	}
	return result, nil
}

// ClonePayload returns a deep copy of a payload map. Nil stays nil.
func ClonePayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c, err := DecodePayload[map[string]any](m)
	if err != nil {
		// Values that cannot be marshalled are copied shallowly
		c = make(map[string]any, len(m))
		for k, v := range m {
			c[k] = v
		}
	}
	return c
}

// LookupPath walks nested maps following keys
func LookupPath(m map[string]any, keys ...string) (any, bool) {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[k]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// ExtractJSONObject parses the object spanning the first "{" and the last "}" in text
func ExtractJSONObject(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return obj, nil
}
