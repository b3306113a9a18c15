package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Change is a single configuration key whose value differs between two
// configurations.
type Change struct {
	// Key is the dotted YAML path (e.g., "quota.max_count").
	Key      string
	OldValue string
	NewValue string
}

// Flatten renders cfg as dotted YAML keys mapped to their string values.
func Flatten(cfg *Config) (map[string]string, error) {
	out := make(map[string]string)
	if cfg == nil {
		return out, nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal configuration: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			flattenInto(out, join(prefix, key), child)
		}
	case []any:
		for i, child := range v {
			flattenInto(out, join(prefix, fmt.Sprint(i)), child)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Diff returns every key whose value differs between old and updated,
// sorted by key. Keys present on one side only report "" for the other.
func Diff(old, updated *Config) ([]Change, error) {
	before, err := Flatten(old)
	if err != nil {
		return nil, err
	}
	after, err := Flatten(updated)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for key, newValue := range after {
		if oldValue, ok := before[key]; !ok || oldValue != newValue {
			changes = append(changes, Change{Key: key, OldValue: before[key], NewValue: newValue})
		}
	}
	for key, oldValue := range before {
		if _, ok := after[key]; !ok {
			changes = append(changes, Change{Key: key, OldValue: oldValue})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes, nil
}
