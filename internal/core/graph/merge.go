package graph

import (
	"fmt"
	"reflect"
)

// MergePayload shallow-merges patch into base and returns a new payload.
// Every non-zero top-level field of patch replaces the base field; zero
// fields leave the base untouched. Use Store.SetPayload to clear fields.
func MergePayload(base, patch Payload) (Payload, error) {
	if base == nil || patch == nil {
		return nil, ErrNilPayload
	}
	if base.Kind() != patch.Kind() {
		return nil, fmt.Errorf("%w: cannot merge %s into %s", ErrKindMismatch, patch.Kind(), base.Kind())
	}
	out := base.clone()
	dst := reflect.ValueOf(out).Elem()
	src := reflect.ValueOf(patch.clone()).Elem()
	for i := 0; i < src.NumField(); i++ {
		f := src.Field(i)
		if f.IsZero() {
			continue
		}
		dst.Field(i).Set(f)
	}
	return out, nil
}
