// Package template renders notification templates.
package template

import (
	"regexp"
)

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{identifier}} in tmpl with vars[identifier].
//
// Substitution is a single pass: values that themselves contain placeholders
// are emitted literally. Placeholders with no matching variable are kept
// verbatim so partially rendered output stays diagnosable.
func Render(tmpl string, vars map[string]string) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// Placeholders lists the distinct identifiers referenced by tmpl in order of
// first appearance.
func Placeholders(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
