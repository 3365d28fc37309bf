package web

import "math"

// parseLooseInt reads an optionally signed decimal prefix of s, skipping
// leading whitespace and stopping at the first non-digit. Input without a
// digit prefix yields 0. Results saturate at the int32 range.
func parseLooseInt(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n > math.MaxInt32 {
			n = math.MaxInt32
		}
	}

	if neg {
		n = -n
	}
	return int(n)
}
