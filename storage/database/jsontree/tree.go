// Package jsontree manipulates generic JSON trees the way the realtime database stores them:
// null members and empty containers do not exist.
// Trees are copy-on-write; a node returned by Get is never mutated by a later Set.
package jsontree

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

// Normalize converts v to its generic JSON form, with numbers kept as json.Number.
func Normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case core.Snapshot:
		return Decode(t)
	case json.RawMessage:
		return Decode(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding value")
	}
	return Decode(b)
}

// Decode parses raw JSON into its generic pruned form.
func Decode(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var node interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&node); err != nil {
		return nil, errors.Wrap(err, "decoding value")
	}
	return prune(node), nil
}

// Encode returns the snapshot of node; nil for an absent node.
func Encode(node interface{}) (core.Snapshot, error) {
	if node == nil {
		return nil, nil
	}
	b, err := json.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	return b, nil
}

func prune(node interface{}) interface{} {
	switch t := node.(type) {
	case map[string]interface{}:
		for k, v := range t {
			if p := prune(v); p == nil {
				delete(t, k)
			} else {
				t[k] = p
			}
		}
		if len(t) == 0 {
			return nil
		}
	case []interface{}:
		empty := true
		for i, v := range t {
			t[i] = prune(v)
			if t[i] != nil {
				empty = false
			}
		}
		if empty {
			return nil
		}
	}
	return node
}

// Get returns the node found at segs, or nil.
func Get(node interface{}, segs []string) interface{} {
	for _, key := range segs {
		switch t := node.(type) {
		case map[string]interface{}:
			node = t[key]
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			node = t[i]
		default:
			return nil
		}
		if node == nil {
			return nil
		}
	}
	return node
}

// Set returns a copy of node where the value at segs is replaced by val (a normalized value).
// A nil val removes the value, and any parent left empty.
func Set(node interface{}, segs []string, val interface{}) interface{} {
	if len(segs) == 0 {
		return val
	}
	key, rest := segs[0], segs[1:]

	if arr, ok := node.([]interface{}); ok {
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(arr) {
			cp := make([]interface{}, len(arr))
			copy(cp, arr)
			cp[i] = Set(cp[i], rest, val)
			return prune(cp)
		}
		node = sliceToMap(arr)
	}

	old, _ := node.(map[string]interface{})
	cp := make(map[string]interface{}, len(old)+1)
	for k, v := range old {
		cp[k] = v
	}
	if child := Set(cp[key], rest, val); child == nil {
		delete(cp, key)
	} else {
		cp[key] = child
	}
	if len(cp) == 0 {
		return nil
	}
	return cp
}

func sliceToMap(arr []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(arr))
	for i, v := range arr {
		if v != nil {
			m[strconv.Itoa(i)] = v
		}
	}
	return m
}
