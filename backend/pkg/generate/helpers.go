package generate

import (
	"errors"
	"strings"
)

var errUnbalancedBraces = errors.New("unbalanced '{' and '}' in path")

// SanitizePath collapses repeated slashes and drops a trailing slash.
// An empty result becomes "/".
func SanitizePath(p string) string {
	var b strings.Builder

	b.Grow(len(p))

	prevSlash := false

	for _, r := range p {
		if r == '/' && prevSlash {
			continue
		}

		prevSlash = r == '/'
		b.WriteRune(r)
	}

	out := strings.TrimSuffix(b.String(), "/")
	if out == "" {
		return "/"
	}

	return out
}

// ExtractParamName returns the chi parameter names found in a path segment,
// with any ":regex" matcher removed. Nested or unbalanced braces are an error.
func ExtractParamName(segment string) ([]string, error) {
	names := []string{}
	rest := segment

	for {
		open := strings.IndexAny(rest, "{}")
		if open == -1 {
			return names, nil
		}

		if rest[open] == '}' {
			return nil, errUnbalancedBraces
		}

		body, tail, ok := strings.Cut(rest[open+1:], "}")
		if !ok || strings.Contains(body, "{") {
			return nil, errUnbalancedBraces
		}

		name, _, _ := strings.Cut(body, ":")
		if name != "" {
			names = append(names, name)
		}

		rest = tail
	}
}

// IsASCIILetterString reports whether s is non-empty and made only of a-z and A-Z.
func IsASCIILetterString(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return !isASCIILetter(r) }) == -1
}

func isASCIILetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// IsValidParameterName reports whether name starts with an ASCII letter
// and continues with letters, digits or underscores.
func IsValidParameterName(name string) bool {
	for i, r := range name {
		switch {
		case isASCIILetter(r):
		case i > 0 && (r == '_' || ('0' <= r && r <= '9')):
		default:
			return false
		}
	}

	return name != ""
}
