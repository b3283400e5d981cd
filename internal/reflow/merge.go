package reflow

import (
	"regexp"
	"strings"

	"twig-cs-formatter/internal/textutil"
)

// mergePattern matches a single set statement piping a value into merge()
// with a flat hash literal.
//
//	{% set name = expr|merge({ props }) %}
var mergePattern = regexp.MustCompile(`\{%-?\s*set\s+[A-Za-z_]\w*\s*=\s*[^{}%]*?\|\s*merge\(\s*\{([^{}]*)\}\s*\)\s*(-?)%\}`)

var mergeOpen = regexp.MustCompile(`merge\(\s*\{$`)

// Merges expands every matched merge statement, quoting bare keys:
//
//	{% set data = base|merge({
//	        'id': 1,
//	        'name': 'x'
//	    }) %}
//
// Properties sit two levels deeper than the statement's line and the
// closing "}) %}" one level deeper. Single-property hashes are expanded too.
func Merges(text string, style Style) string {
	var edits []edit
	for _, loc := range mergePattern.FindAllStringSubmatchIndex(text, -1) {
		props := SplitProperties(text[loc[2]:loc[3]])
		if len(props) == 0 {
			continue
		}

		base := textutil.LineIndentAt(text, loc[0])
		prefix := mergeOpen.ReplaceAllString(text[loc[0]:loc[2]], "merge({")
		suffix := "}) " + text[loc[4]:loc[5]] + "%}"

		var sb strings.Builder
		sb.WriteString(prefix)
		sb.WriteString("\n")
		sb.WriteString(renderProperties(props, style.levels(base, 2)))
		sb.WriteString("\n")
		sb.WriteString(style.levels(base, 1))
		sb.WriteString(suffix)

		edits = append(edits, edit{start: loc[0], end: loc[1], replacement: sb.String()})
	}
	return applyEdits(text, edits)
}
