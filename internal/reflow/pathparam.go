package reflow

import (
	"regexp"
	"strings"

	"twig-cs-formatter/internal/textutil"
)

// PathHelper is the route helper whose parameters are reflowed.
const PathHelper = "path"

// PathAttribute is the attribute a path() call must follow to be reflowed.
const PathAttribute = "href="

// pathPattern matches path('route', { props }) with a flat hash literal.
var pathPattern = regexp.MustCompile(`\b` + PathHelper + `\(\s*('[^']*'|"[^"]*")\s*,\s*\{([^{}]*)\}\s*\)`)

// PathParams expands the parameters of path() calls used in an href
// attribute, aligned to the line holding the nearest preceding href=:
//
//	href="{{ path('app_show', {
//	    'id': item.id
//	}) }}"
//
// A call with no href= anywhere before it is left untouched.
func PathParams(text string, style Style) string {
	var edits []edit
	for _, loc := range pathPattern.FindAllStringSubmatchIndex(text, -1) {
		marker := strings.LastIndex(text[:loc[0]], PathAttribute)
		if marker < 0 {
			continue
		}
		props := SplitProperties(text[loc[4]:loc[5]])
		if len(props) == 0 {
			continue
		}

		ref := textutil.LineIndentAt(text, marker)
		route := text[loc[2]:loc[3]]

		var sb strings.Builder
		sb.WriteString(PathHelper + "(" + route + ", {\n")
		sb.WriteString(renderProperties(props, style.levels(ref, 1)))
		sb.WriteString("\n")
		sb.WriteString(ref + "})")

		edits = append(edits, edit{start: loc[0], end: loc[1], replacement: sb.String()})
	}
	return applyEdits(text, edits)
}
