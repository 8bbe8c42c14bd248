package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// ParseJSON extracts the first JSON object embedded in text.
//
// Scanning starts at the first '{' and tracks nesting across braces and
// brackets, skipping over string literals (honouring backslash escapes).
// Text after the object's closing brace is ignored. If the text ends while
// the object is still open, the missing quote and closers are appended before
// decoding. A closer of the wrong kind, such as '{' closed by ']', rejects the
// candidate. Comments and trailing commas are tolerated. Empty objects are not
// returned.
func ParseJSON(text string) (map[string]any, bool) {
	candidate, _, ok := scanObject(text)
	if !ok {
		return nil, false
	}
	return decodeObject(candidate)
}

// ParseAllObjects extracts every JSON object it can find in text, in order.
// Each candidate is scanned from its opening brace to its matching closer, so
// pretty-printed objects spanning several lines are read whole and nested
// objects stay inside their parent. Scanning resumes after each candidate,
// whether it parsed or was rejected.
func ParseAllObjects(text string) []map[string]any {
	var objects []map[string]any
	for len(text) > 0 {
		candidate, end, ok := scanObject(text)
		if end == 0 {
			break
		}
		if ok {
			if obj, parsed := decodeObject(candidate); parsed {
				objects = append(objects, obj)
			}
		}
		text = text[end:]
	}
	return objects
}

// ExtractObject returns the raw text of the first JSON object embedded in
// text, closed the same way ParseJSON closes it. Unlike ParseJSON it keeps
// the object's key order, for decoders that depend on it.
func ExtractObject(text string) (string, bool) {
	candidate, _, ok := scanObject(text)
	if !ok {
		return "", false
	}
	return string(jsonc.ToJSON([]byte(candidate))), true
}

func decodeObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(candidate)), &obj); err != nil {
		return nil, false
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// scanObject returns the text of the first object with any unterminated
// nesting closed, and the offset in text where scanning stopped. The offset
// is zero only when text has no '{'. A mismatched closer rejects the
// candidate and the offset points just past it.
func scanObject(text string) (string, int, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", 0, false
	}
	obj := text[start:]

	nesting := []byte{'}'}
	inString := false
	i := 1

	for ; i < len(obj) && len(nesting) > 0; i++ {
		ch := obj[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			nesting = append(nesting, '}')
		case '[':
			nesting = append(nesting, ']')
		case '}', ']':
			closer := nesting[len(nesting)-1]
			nesting = nesting[:len(nesting)-1]
			if closer != ch {
				return "", start + i + 1, false
			}
		}
	}

	if i > len(obj) {
		// A trailing backslash escaped past the end of the text.
		i = len(obj)
	}

	var b strings.Builder
	b.Grow(i + len(nesting) + 1)
	b.WriteString(obj[:i])
	if inString {
		b.WriteByte('"')
	}
	for j := len(nesting) - 1; j >= 0; j-- {
		b.WriteByte(nesting[j])
	}
	return b.String(), start + i, true
}

// Decode converts a parsed object into T by round-tripping it through
// encoding/json.
func Decode[T any](obj map[string]any) (*T, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &result, nil
}
