// Package template expands the `{ var }` placeholder templates used in
// package manifests for download URLs and archive bin-dirs.
package template

import (
	"fmt"
	"strings"
)

// Vars supplies the values a template may reference. Lookups are by the
// variable's bare name (whitespace around `{ name }` is insignificant and
// already stripped by the time Lookup is called).
type Vars map[string]string

// Expand substitutes every `{ var }` placeholder in tmpl using vars.
// Escapes `\{`, `\}`, and `\\` are honored; any other backslash sequence
// is a syntax error. An unknown variable is an expand-time error.
func Expand(tmpl string, vars Vars) (string, error) {
	var out strings.Builder
	runes := []rune(tmpl)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 >= len(runes) {
				return "", fmt.Errorf("template: trailing backslash at position %d", i)
			}
			next := runes[i+1]
			switch next {
			case '{', '}', '\\':
				out.WriteRune(next)
				i += 2
			default:
				return "", fmt.Errorf("template: invalid escape sequence %q at position %d", string([]rune{c, next}), i)
			}
		case '{':
			end := indexRune(runes, i+1, '}')
			if end == -1 {
				return "", fmt.Errorf("template: unterminated placeholder starting at position %d", i)
			}
			name := strings.TrimSpace(string(runes[i+1 : end]))
			if name == "" {
				return "", fmt.Errorf("template: empty placeholder at position %d", i)
			}
			val, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("template: unknown variable %q", name)
			}
			out.WriteString(val)
			i = end + 1
		case '}':
			return "", fmt.Errorf("template: unmatched '}' at position %d", i)
		default:
			out.WriteRune(c)
			i++
		}
	}
	return out.String(), nil
}

func indexRune(runes []rune, start int, target rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// Variables returns the deterministic set of variable names referenced in
// tmpl, in order of first appearance, without validating them against a
// Vars map. Used to diagnose "unused variable" style collisions between
// two distinct Vars maps that expand identically (spec.md §8 property 1).
func Variables(tmpl string) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	runes := []rune(tmpl)
	i := 0
	for i < len(runes) {
		switch runes[i] {
		case '\\':
			i += 2
		case '{':
			end := indexRune(runes, i+1, '}')
			if end == -1 {
				return nil, fmt.Errorf("template: unterminated placeholder starting at position %d", i)
			}
			name := strings.TrimSpace(string(runes[i+1 : end]))
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i = end + 1
		default:
			i++
		}
	}
	return names, nil
}
