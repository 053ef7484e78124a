// Package token implements the {{name|default|transform}} placeholder
// mini-language used by campaign step subjects and bodies.
package token

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Render substitutes {{...}} placeholders in template using vars. Inside a
// placeholder the first pipe-separated token is the variable name; each
// following token is either a transform (trim, upper, lower, title) or a
// default value used when the variable is missing or empty. Only the first
// non-transform token counts as the default; extras are dropped. Transforms
// apply left to right as written. A "{{" with no closing "}}" is emitted
// verbatim. Render is pure: same inputs, same output, vars never mutated.
func Render(template string, vars map[string]string) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			// Unmatched opener, emit the remainder as-is
			b.WriteString(rest)
			break
		}
		close += open

		b.WriteString(rest[:open])
		b.WriteString(expand(rest[open+2 : close], vars))
		rest = rest[close+2:]
	}

	return b.String()
}

func expand(placeholder string, vars map[string]string) string {
	tokens := strings.Split(placeholder, "|")
	name := strings.TrimSpace(tokens[0])

	var transforms []string
	def := ""
	haveDefault := false
	for _, tok := range tokens[1:] {
		tok = strings.TrimSpace(tok)
		if isTransform(tok) {
			transforms = append(transforms, tok)
			continue
		}
		if !haveDefault {
			def = tok
			haveDefault = true
		}
	}

	value, ok := vars[name]
	if !ok || value == "" {
		value = def
	}

	for _, tr := range transforms {
		value = applyTransform(value, tr)
	}
	return value
}

func isTransform(tok string) bool {
	switch tok {
	case "trim", "upper", "lower", "title":
		return true
	}
	return false
}

func applyTransform(value, transform string) string {
	switch transform {
	case "trim":
		return strings.TrimSpace(value)
	case "upper":
		return strings.ToUpper(value)
	case "lower":
		return strings.ToLower(value)
	case "title":
		return cases.Title(language.Und).String(value)
	}
	return value
}
