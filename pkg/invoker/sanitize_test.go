package invoker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewcoach/pkg/agent/llmerrors"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		required []string
		want     string
		wantErr  bool
	}{
		{name: "bare object", reply: `{"a": 1}`, want: `{"a": 1}`},
		{name: "fenced json", reply: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "plain fence", reply: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "fence inline", reply: "```json {\"score\": 5, \"tip\": \"x\"} ```", required: []string{"score"}, want: `{"score": 5, "tip": "x"}`},
		{name: "fence opens object line", reply: "```json {\n\"score\": 5\n}\n```", required: []string{"score"}, want: `{"score": 5}`},
		{name: "fence closes object line", reply: "```\n{\"score\": 5}```", want: `{"score": 5}`},
		{name: "tag glued to brace", reply: "```json{\"a\": 1}```", want: `{"a": 1}`},
		{name: "prose around", reply: "Here it is: {\"a\": {\"b\": 2}} thanks!", want: `{"a": {"b": 2}}`},
		{name: "required present", reply: `{"score": 3, "tip": "x"}`, required: []string{"score", "tip"}, want: `{"score": 3, "tip": "x"}`},
		{name: "required missing", reply: `{"score": 3}`, required: []string{"score", "tip"}, wantErr: true},
		{name: "no braces", reply: "no json here", wantErr: true},
		{name: "reversed braces", reply: "} oops {", wantErr: true},
		{name: "invalid span", reply: `{"a": }`, wantErr: true},
		{name: "array not object", reply: `[{"a":1},{"b":2}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.reply, tt.required)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeMalformed))
				assert.False(t, llmerrors.IsTransport(err))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

// A fenced, prose-wrapped rendering of any object sanitizes back to the same value.
func TestSanitizeRoundTrip(t *testing.T) {
	values := []map[string]any{
		{"score": 8.0, "feedback": "Clear and structured."},
		{"nested": map[string]any{"list": []any{"a", "b"}}, "braces": "text with } and {"},
		{},
	}
	for _, v := range values {
		raw, err := json.MarshalIndent(v, "", "  ")
		require.NoError(t, err)
		wrapped := "Sure, here you go.\n```json\n" + string(raw) + "\n```\nLet me know if you need more."

		data, err := Sanitize(wrapped, nil)
		require.NoError(t, err)

		var back map[string]any
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", StripFences("plain"))
	assert.Equal(t, `{"a":1}`, StripFences("```json {\"a\":1} ```"))
	assert.Equal(t, "{\n\"a\":1\n}", StripFences("```json {\n\"a\":1\n}\n```"))
	assert.Equal(t, "x := `raw`", StripFences("```go\nx := `raw`\n```"), "single backticks survive")
}
