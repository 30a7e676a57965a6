package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidKey is returned when a path segment cannot be used as a tree key.
var ErrInvalidKey = errors.New("keys must be non-empty and cannot contain '.', '$', '#', '[', ']' or '/'")

type (
	// TreeStore is a hierarchical key-value store addressed by slash-separated paths.
	// Reading an absent path is not an error: the returned Snapshot is empty.
	TreeStore interface {
		Get(ctx context.Context, path string) (Snapshot, error)
		// Set overwrites the value at path. A nil value deletes it.
		Set(ctx context.Context, path string, value interface{}) error
		Delete(ctx context.Context, path string) error
		// NewKey returns a fresh, chronologically sortable child key under path.
		NewKey(ctx context.Context, path string) (string, error)
		// Transaction atomically replaces the value at path with the result of fn.
		// fn may be called more than once. Returning ErrAbortTransaction leaves the value untouched.
		Transaction(ctx context.Context, path string, fn UpdateFunc) error
		// Subscribe calls fn with the current snapshot at path, then again on every change.
		Subscribe(ctx context.Context, path string, fn SnapshotFunc) (Subscription, error)
		Close() error
	}

	UpdateFunc   func(current Snapshot) (interface{}, error)
	SnapshotFunc func(snap Snapshot)

	Subscription interface {
		Unsubscribe()
	}

	// Snapshot is the JSON encoding of a subtree. An empty Snapshot means absent.
	Snapshot []byte
)

// ErrAbortTransaction makes TreeStore.Transaction return without writing.
var ErrAbortTransaction = errors.New("transaction aborted")

func (s Snapshot) Exists() bool {
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

// Decode unmarshals the snapshot into v. Absent snapshots leave v untouched.
func (s Snapshot) Decode(v interface{}) error {
	if !s.Exists() {
		return nil
	}
	if err := json.Unmarshal(s, v); err != nil {
		return errors.Wrap(err, "decoding snapshot")
	}
	return nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	if !s.Exists() {
		return []byte("null"), nil
	}
	return s, nil
}

func (s Snapshot) Equal(other Snapshot) bool {
	if !s.Exists() || !other.Exists() {
		return s.Exists() == other.Exists()
	}
	return bytes.Equal(s, other)
}

// Children splits an object snapshot into its children. Objects whose keys are
// dense integers (e.g. semester labels "1", "2", "3") may be rendered as arrays
// by the realtime database; those are read back with index keys, nulls skipped.
func (s Snapshot) Children() (map[string]Snapshot, error) {
	if !s.Exists() {
		return nil, nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(s, &byKey); err == nil {
		children := make(map[string]Snapshot, len(byKey))
		for key, val := range byKey {
			if child := Snapshot(val); child.Exists() {
				children[key] = child
			}
		}
		return children, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(s, &arr); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot children")
	}
	children := make(map[string]Snapshot, len(arr))
	for i, val := range arr {
		if child := Snapshot(val); child.Exists() {
			children[strconv.Itoa(i)] = child
		}
	}
	return children, nil
}

// SplitPath returns the non-empty segments of path.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// JoinPath builds a store path, validating each segment.
func JoinPath(segments ...string) (string, error) {
	for _, seg := range segments {
		if !ValidKey(seg) {
			return "", NewFieldValidationError("key", errors.Wrapf(ErrInvalidKey, "%q", seg))
		}
	}
	return strings.Join(segments, "/"), nil
}

// ValidKey reports whether s can be used as a single path segment.
func ValidKey(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".$#[]/")
}

// RelatedPaths reports whether a change at one path can affect the other:
// they are equal or one is an ancestor of the other.
func RelatedPaths(a, b string) bool {
	as, bs := SplitPath(a), SplitPath(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
