package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be recovered from a response.
var ErrNoJSON = errors.New("no JSON value found in model response")

// ParseJSON recovers a JSON value from model text. The whole text is tried
// first; otherwise, starting from the earliest '{' or '[', every suffix-trimmed
// candidate is tried from the longest down. If nothing parses from there the
// other opening character is tried the same way.
func ParseJSON(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if v, ok := decode(trimmed); ok {
		return v, nil
	}

	obj := strings.IndexByte(trimmed, '{')
	arr := strings.IndexByte(trimmed, '[')
	starts := []int{obj, arr}
	if arr >= 0 && (obj < 0 || arr < obj) {
		starts = []int{arr, obj}
	}
	for _, start := range starts {
		if start < 0 {
			continue
		}
		for end := len(trimmed); end > start; end-- {
			if v, ok := decode(trimmed[start:end]); ok {
				return v, nil
			}
		}
	}
	return nil, ErrNoJSON
}

func decode(s string) (any, bool) {
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
