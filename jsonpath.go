package vidtask

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// jsonPathToken matches one path segment: either a plain key or a bracketed
// array index. Bracket groups that are not pure digits fall through to the
// key alternative, so a malformed path degrades to key lookups instead of
// aborting the walk.
var jsonPathToken = regexp.MustCompile(`([^[\].]+)|\[(\d+)\]`)

// Extract walks a decoded JSON value along a dotted path such as
// "data.items[0].video_url" and reports whether the walk reached a value.
// A missing key, an out-of-range index, a null at any step, or an empty
// path all report not found.
func Extract(root any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	current := root
	for _, token := range jsonPathToken.FindAllStringSubmatch(path, -1) {
		if token[1] != "" {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current = obj[token[1]]
		} else {
			idx, err := strconv.Atoi(token[2])
			if err != nil {
				return nil, false
			}
			list, ok := current.([]any)
			if !ok || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
		}
		if current == nil {
			return nil, false
		}
	}
	return current, true
}

// asText renders an extracted JSON value as a string. Strings pass through,
// numbers keep the literal form the decoder preserved, booleans render as
// "true"/"false", and composite values fall back to their JSON encoding.
func asText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		if encoded, err := json.Marshal(v); err == nil {
			return string(encoded)
		}
		return fmt.Sprint(v)
	}
}

// textAt extracts the value at path and renders it with asText. It returns
// the empty string when the path resolves to nothing.
func textAt(root any, path string) string {
	value, ok := Extract(root, path)
	if !ok {
		return ""
	}
	return asText(value)
}
