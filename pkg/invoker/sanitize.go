package invoker

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"interviewcoach/pkg/agent/llmerrors"
)

// ErrNoObject is returned when a reply contains no {...} span.
var ErrNoObject = errors.New("no JSON object in reply")

// openingFence matches ``` plus an optional language tag at the start of a line.
var openingFence = regexp.MustCompile("^```[A-Za-z0-9_+-]*")

// StripFences removes markdown code-fence markers (``` or ```json) from a reply. Text
// sharing a line with a marker is kept.
func StripFences(reply string) string {
	lines := strings.Split(reply, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = openingFence.ReplaceAllString(line, "")
		line = strings.TrimSuffix(line, "```")
		lines[i] = line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractObject returns the span from the first '{' to the last '}'.
func ExtractObject(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return "", ErrNoObject
	}
	return reply[start : end+1], nil
}

// Sanitize turns a free-form reply into a JSON object carrying every required key.
// Failures are *llmerrors.Error of type ErrorTypeMalformed.
func Sanitize(reply string, required []string) (json.RawMessage, error) {
	span, err := ExtractObject(StripFences(reply))
	if err != nil {
		return nil, llmerrors.NewMalformedError(err, reply)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, llmerrors.NewMalformedError(err, reply)
	}

	var missing []string
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, llmerrors.NewMalformedError(fmt.Errorf("missing keys: %s", strings.Join(missing, ", ")), reply)
	}
	return json.RawMessage(span), nil
}
