package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/kbukum/wonderwhisper/errors"
)

// ParseText extracts the transcript from a response body. It accepts
// {"text": string} and loosely typed variants: a number or bool text is
// rendered as a string, null or absent text is empty, and a body that is
// not a JSON object (response_format=text servers) is the transcript itself.
func ParseText(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '{':
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s), nil
		}
		return string(trimmed), nil
	default:
		return string(trimmed), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", apperrors.DecodingFailed("transcription response", err)
	}
	raw, ok := fields["text"]
	if !ok {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", apperrors.DecodingFailed("text field", err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", apperrors.DecodingFailed("text field", fmt.Errorf("unexpected type %T", v))
	}
}
