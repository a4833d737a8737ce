// Package render performs {{token}} placeholder substitution on template text.
package render

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes every {{token}} present in the template using the given
// context. Tokens without a context value are left untouched so the gap is
// visible in the delivered message rather than silently blanked. A template
// with no placeholders is returned unmodified.
func Render(template string, context map[string]string) string {
	if len(context) == 0 {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := context[token]; ok {
			return value
		}
		return match
	})
}
