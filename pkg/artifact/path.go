package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Lookup walks a dotted path of object keys ("writeUp.id") through raw and
// returns the value found there. A missing key, a non-object on the way or a
// JSON null yields ok == false.
func Lookup(raw json.RawMessage, path string) (json.RawMessage, bool) {
	cur := raw
	if path == "" {
		return cur, len(bytes.TrimSpace(cur)) > 0
	}
	for _, key := range strings.Split(path, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil || obj == nil {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	if isNull(cur) {
		return nil, false
	}
	return cur, true
}

// IDAt extracts a positive integer ID at path. Numeric strings are accepted
// because some APIs quote 64-bit IDs.
func IDAt(raw json.RawMessage, path string) (int64, error) {
	v, ok := Lookup(raw, path)
	if !ok {
		return 0, fmt.Errorf("%w: no value at %q", ErrMissingID, path)
	}
	return parseID(v)
}

// StringAt returns the value at path rendered as a string. Strings are
// returned unquoted, numbers and booleans verbatim; anything else is "".
func StringAt(raw json.RawMessage, path string) string {
	v, ok := Lookup(raw, path)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func parseID(v json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrMissingID, v)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMissingID, n)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrMissingID, id)
	}
	return id, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
