package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// errNotFinite rejects "NaN" and "Inf" spelled as strings.
var errNotFinite = errors.New("number is not finite")

// number accepts JSON numbers, numeric strings and null.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err //nolint:wrapcheck // json error already descriptive
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err //nolint:wrapcheck // strconv error already descriptive
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errNotFinite
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err //nolint:wrapcheck // json error already descriptive
	}
	*n = number(f)
	return nil
}

// clamp rounds n and bounds it to [lo, hi].
func clamp(n number, lo, hi int) int {
	v := int(math.Round(float64(n)))
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nonEmpty drops blank entries.
func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
