package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON unmarshals the JSON object embedded in a model response,
// tolerating markdown fences and chatter around the braces.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	start := strings.Index(response, "{")
	if start == -1 {
		return zero, fmt.Errorf("no JSON object in response")
	}
	end := strings.LastIndex(response, "}")
	if end < start {
		return zero, fmt.Errorf("unterminated JSON object in response")
	}
	payload := response[start : end+1]

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return zero, fmt.Errorf("failed to decode %q: %w", payload, err)
	}
	return result, nil
}
