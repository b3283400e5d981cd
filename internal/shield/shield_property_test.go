//go:build property

package shield

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fragments are glued together to build documents with any mix of comments
// and inline elements.
var fragments = []string{
	"{# note #}",
	"{# multi\n   line #}",
	`<span class="a">text</span>`,
	"<b>{{ value }}</b>",
	"<twig:Alert>x</twig:Alert>",
	"<div>\n",
	"</div>\n",
	"{% if x %}",
	"{% endif %}",
	"    ",
	"\n",
	"plain words ",
	"#}",
	"{#",
}

func TestShieldRestoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	document := gen.SliceOf(gen.IntRange(0, len(fragments)-1)).Map(func(idx []int) string {
		var sb strings.Builder
		for _, i := range idx {
			sb.WriteString(fragments[i])
		}
		return sb.String()
	})

	properties.Property("restore undoes both shields", prop.ForAll(
		func(text string, width int) bool {
			withoutComments, comments := Comments(text)
			shielded, inline := InlineElements(withoutComments, width)
			return comments.Restore(inline.Restore(shielded)) == text
		},
		document,
		gen.IntRange(0, 200),
	))

	properties.Property("no template comment survives the comment shield", prop.ForAll(
		func(text string) bool {
			shielded, _ := Comments(text)
			return !commentPattern.MatchString(shielded)
		},
		document,
	))

	properties.Property("every token is present right after shielding", prop.ForAll(
		func(text string) bool {
			shielded, table := Comments(text)
			return len(table.Missing(shielded)) == 0
		},
		document,
	))

	properties.TestingRun(t)
}
