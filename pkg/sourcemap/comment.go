package sourcemap

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const dataURLPrefix = "data:application/json;charset=utf-8;base64,"

// Comment returns the trailing comment that links generated code to url.
func Comment(url string) string {
	return "//# sourceMappingURL=" + url
}

// trailingComment locates a sourceMappingURL comment on the last non-blank
// line of code. start is the offset of that line.
func trailingComment(code string) (ref string, start int, ok bool) {
	trimmed := strings.TrimRight(code, " \t\r\n")
	start = strings.LastIndexByte(trimmed, '\n') + 1
	line := strings.TrimSpace(trimmed[start:])
	for _, prefix := range []string{"//# sourceMappingURL=", "//@ sourceMappingURL="} {
		if rest, found := strings.CutPrefix(line, prefix); found && rest != "" && !strings.ContainsAny(rest, " \t") {
			return rest, start, true
		}
	}
	return "", 0, false
}

// CommentURL returns the map reference named by code's trailing
// sourceMappingURL comment.
func CommentURL(code string) (string, bool) {
	ref, _, ok := trailingComment(code)
	return ref, ok
}

// SetComment replaces code's trailing sourceMappingURL comment, or appends
// one, so that it names url.
func SetComment(code, url string) string {
	if _, start, ok := trailingComment(code); ok {
		code = code[:start]
	}
	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + Comment(url) + "\n"
}

// StripComment removes code's trailing sourceMappingURL comment and any
// trailing blank space.
func StripComment(code string) string {
	if _, start, ok := trailingComment(code); ok {
		code = code[:start]
	}
	return strings.TrimRight(code, " \t\r\n")
}

// IsDataURL reports whether ref is an inline map rather than a path.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// DecodeDataURL returns the document embedded in a data URL. Both base64
// and percent-encoded payloads are accepted.
func DecodeDataURL(ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data URL: %w", err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URL: %w", err)
	}
	return []byte(data), nil
}
