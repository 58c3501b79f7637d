package rawstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// EqualJSON reports whether two JSON documents are structurally equal,
// ignoring mapping key order and formatting. A document that cannot be parsed
// yields an error instead of a guessed answer, so a broken stored payload is
// visible rather than silently rewritten on every run.
func EqualJSON(a, b []byte) (bool, error) {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false, fmt.Errorf("compare: left document: %w", err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false, fmt.Errorf("compare: right document: %w", err)
	}
	return reflect.DeepEqual(av, bv), nil
}
