package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML from user input and returns plain text.
// Entities escaped by the policy are decoded again because html/template
// escapes on output; storing "&amp;" would render as a literal "&amp;".
func Text(input string) string {
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// Line returns Text with surrounding whitespace removed. Use for single-line
// form fields such as usernames and event names.
func Line(input string) string {
	return strings.TrimSpace(Text(input))
}
