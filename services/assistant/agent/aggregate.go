// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// MergeListPayloads flattens several list-shaped tool payloads into one
// slice, de-duplicating with first-seen-wins semantics. Duplicate
// detection keys on an item's "id" field, then its "title", then its
// serialized form, so heterogeneous payloads merge without a shared
// type. Input order is preserved.
func MergeListPayloads(payloads ...any) []any {
	seen := make(map[string]struct{})
	var out []any

	for _, payload := range payloads {
		for _, item := range asList(payload) {
			key := dedupeKey(item)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// asList unwraps a payload into its elements. Non-list payloads become a
// single-element list; nil payloads vanish.
func asList(payload any) []any {
	if payload == nil {
		return nil
	}
	v := reflect.ValueOf(payload)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{payload}
	}
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i).Interface())
	}
	return out
}

// dedupeKey derives the identity key for one item.
func dedupeKey(item any) string {
	fields := itemFields(item)
	if id, ok := fields["id"]; ok && id != "" {
		return "id:" + id
	}
	if title, ok := fields["title"]; ok && title != "" {
		return "title:" + title
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("raw:%v", item)
	}
	return "raw:" + string(data)
}

// itemFields extracts the lowercase scalar fields of an item through its
// JSON form, covering both map payloads and typed rows.
func itemFields(item any) map[string]string {
	data, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
