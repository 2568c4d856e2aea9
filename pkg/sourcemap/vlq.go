package sourcemap

import (
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqShift        = 5
	vlqContinuation = 1 << vlqShift
	vlqMask         = vlqContinuation - 1
)

var base64Values = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		t[base64Chars[i]] = int8(i)
	}
	return t
}()

// writeVLQ appends the base64 VLQ encoding of v to sb.
func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & vlqMask
		u >>= vlqShift
		if u > 0 {
			digit |= vlqContinuation
		}
		sb.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}

// readVLQ decodes one value from s starting at i and returns it with the
// index just past it.
func readVLQ(s string, i int) (int, int, error) {
	result, shift := 0, 0
	for {
		if i >= len(s) {
			return 0, i, fmt.Errorf("unterminated VLQ value")
		}
		digit := base64Values[s[i]]
		if digit < 0 {
			return 0, i, fmt.Errorf("invalid base64 character %q at %d", s[i], i)
		}
		i++
		result += int(digit&vlqMask) << shift
		if digit&vlqContinuation == 0 {
			break
		}
		shift += vlqShift
		if shift > 60 {
			return 0, i, fmt.Errorf("VLQ value overflows")
		}
	}
	if result&1 == 1 {
		return -(result >> 1), i, nil
	}
	return result >> 1, i, nil
}
