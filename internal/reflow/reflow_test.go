package reflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

func TestSplitProperties(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected []string
	}{
		{"empty", "  ", nil},
		{"single", "id: 1", []string{"id: 1"}},
		{"trims items", " a: 1 ,  'b': 2 ", []string{"a: 1", "'b': 2"}},
		{"trailing comma", "a: 1,", []string{"a: 1"}},
		{"comma in string", `a: 'x, y', b: "1,2"`, []string{"a: 'x, y'", `b: "1,2"`}},
		{"comma in call", "a: fn(1, 2), b: [3, 4]", []string{"a: fn(1, 2)", "b: [3, 4]"}},
		{"escaped quote", `a: 'it\'s, ok', b: 1`, []string{`a: 'it\'s, ok'`, "b: 1"}},
		{"multi line", "\n    'a': 1,\n    'b': 2\n", []string{"'a': 1", "'b': 2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitProperties(tc.body))
		})
	}
}

func TestQuoteKey(t *testing.T) {
	testCases := []struct {
		prop     string
		expected string
	}{
		{"id: 1", "'id': 1"},
		{"id:1", "'id': 1"},
		{"'id': 1", "'id': 1"},
		{`"id": 1`, `"id": 1`},
		{"(key): 1", "(key): 1"},
		{"shorthand", "shorthand"},
		{"url: 'http://x'", "'url': 'http://x'"},
		{"a: b ? c : d", "'a': b ? c : d"},
		{"2: 'two'", "'2': 'two'"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, QuoteKey(tc.prop), "prop %q", tc.prop)
	}
}

func TestComponentsReflowsMultiAttributeTag(t *testing.T) {
	input := lines(
		"<div>",
		`    <twig:Card title="A" subtitle="B" />`,
		"</div>",
	)
	expected := lines(
		"<div>",
		"    <twig:Card",
		`        title="A"`,
		`        subtitle="B"`,
		"    />",
		"</div>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsSpanAcrossLines(t *testing.T) {
	input := lines(
		`<twig:Alert type="danger" message="{{`,
		`    error.messageKey|trans(error.messageData, 'security')`,
		`}}">`,
		"    body",
		"</twig:Alert>",
	)
	expected := lines(
		"<twig:Alert",
		`    type="danger"`,
		`    message="{{ error.messageKey|trans(error.messageData, 'security') }}"`,
		">",
		"    body",
		"</twig:Alert>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsExpressionValues(t *testing.T) {
	input := `<twig:Button :disabled={{   not   form.valid }} label='Go'/>`
	expected := lines(
		"<twig:Button",
		"    :disabled={{ not form.valid }}",
		"    label='Go'",
		"/>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsKeepsBareAttributesAndSpreads(t *testing.T) {
	input := `<twig:Input name="q" disabled {{ ...attrs }} type="search" />`
	expected := lines(
		"<twig:Input",
		`    name="q"`,
		"    disabled",
		"    {{ ...attrs }}",
		`    type="search"`,
		"/>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsGreaterThanInsideExpression(t *testing.T) {
	input := lines(
		`<twig:Badge count="{{ n > 9 ? '9+' : n }}"`,
		`    tone="info" />`,
	)
	expected := lines(
		"<twig:Badge",
		`    count="{{ n > 9 ? '9+' : n }}"`,
		`    tone="info"`,
		"/>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsEmptyElementClosingTag(t *testing.T) {
	input := `<twig:Card a="1" b="2"></twig:Card>`
	expected := lines(
		"<twig:Card",
		`    a="1"`,
		`    b="2"`,
		"></twig:Card>",
	)

	assert.Equal(t, expected, Components(input, DefaultStyle()))
}

func TestComponentsTabIndent(t *testing.T) {
	input := "\t<twig:Card a=\"1\" b=\"2\" />"
	expected := "\t<twig:Card\n\t\ta=\"1\"\n\t\tb=\"2\"\n\t/>"

	assert.Equal(t, expected, Components(input, Style{Indent: "\t"}))
}

func TestComponentsPassThrough(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"single attribute", `<twig:Icon name="check" />`},
		{"single attribute across lines", "<twig:Icon name=\"{{\n    icon }}\"\n/>"},
		{"no attributes", "<twig:Spacer />"},
		{"not a component", `<div class="a" id="b"></div>`},
		{"missing name", `<twig: a="1" b="2" />`},
		{"unterminated", "<twig:Card a=\"1\" b=\"2\"\n<p>x</p"},
		{"trailing content", `<twig:Card a="1" b="2">Hello</twig:Card>`},
		{"already reflowed", lines("<twig:Card", `    a="1"`, `    b="2"`, "/>")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.input, Components(tc.input, DefaultStyle()))
		})
	}
}

func TestComponentsIdempotent(t *testing.T) {
	inputs := []string{
		`<twig:Card title="A" subtitle="B" />`,
		lines(`<twig:Alert type="x" message="{{`, "  m }}\">", "body", "</twig:Alert>"),
		lines("<ul>", `    <li><twig:Link href="{{ path('home') }}" label="Home" /></li>`, "</ul>"),
		`<twig:Input name="q" disabled {{ ...attrs }} type="search" />`,
	}

	for _, input := range inputs {
		once := Components(input, DefaultStyle())
		twice := Components(once, DefaultStyle())
		assert.Equal(t, once, twice, "input %q", input)
	}
}

func TestMergesQuotesKeys(t *testing.T) {
	input := "{% set x = y|merge({a: 1, 'b': 2}) %}"
	expected := lines(
		"{% set x = y|merge({",
		"        'a': 1,",
		"        'b': 2",
		"    }) %}",
	)

	assert.Equal(t, expected, Merges(input, DefaultStyle()))
}

func TestMergesUsesStatementIndentation(t *testing.T) {
	input := lines(
		"{% block body %}",
		"    {% set data = base|default([])|merge( { id: 1 } ) %}",
		"{% endblock %}",
	)
	expected := lines(
		"{% block body %}",
		"    {% set data = base|default([])|merge({",
		"            'id': 1",
		"        }) %}",
		"{% endblock %}",
	)

	assert.Equal(t, expected, Merges(input, DefaultStyle()))
}

func TestMergesWhitespaceControl(t *testing.T) {
	input := "{%- set opts = opts|merge({label: 'Save', attr: fn(1, 2)}) -%}"
	expected := lines(
		"{%- set opts = opts|merge({",
		"        'label': 'Save',",
		"        'attr': fn(1, 2)",
		"    }) -%}",
	)

	assert.Equal(t, expected, Merges(input, DefaultStyle()))
}

func TestMergesMultipleStatements(t *testing.T) {
	input := lines(
		"{% set a = x|merge({k: 1}) %}",
		"{% set b = y|merge({k: 2}) %}",
	)
	expected := lines(
		"{% set a = x|merge({",
		"        'k': 1",
		"    }) %}",
		"{% set b = y|merge({",
		"        'k': 2",
		"    }) %}",
	)

	assert.Equal(t, expected, Merges(input, DefaultStyle()))
}

func TestMergesLeavesOtherConstructs(t *testing.T) {
	inputs := []string{
		"{% set x = y|merge({a: {b: 1}}) %}",
		"{% set x = y|merge({}) %}",
		"{% set x = y|merge([1, 2]) %}",
		"{{ y|merge({a: 1}) }}",
	}

	for _, input := range inputs {
		assert.Equal(t, input, Merges(input, DefaultStyle()))
	}
}

func TestMergesIdempotent(t *testing.T) {
	input := "    {% set x = y|merge({a: 1, 'b': 2}) %}"
	once := Merges(input, DefaultStyle())
	assert.Equal(t, once, Merges(once, DefaultStyle()))
}

func TestPathParamsUsesHrefIndentation(t *testing.T) {
	input := lines(
		"<twig:Link",
		`    href="{{ path( 'app_show', {id: item.id, slug: item.slug} ) }}"`,
		`    label="Show"`,
		"/>",
	)
	expected := lines(
		"<twig:Link",
		`    href="{{ path('app_show', {`,
		"        'id': item.id,",
		"        'slug': item.slug",
		`    }) }}"`,
		`    label="Show"`,
		"/>",
	)

	assert.Equal(t, expected, PathParams(input, DefaultStyle()))
}

func TestPathParamsSkipsWithoutHref(t *testing.T) {
	input := lines(
		"{% set url = path('app_show', {id: 1}) %}",
		`<a href="{{ url }}">x</a>`,
	)

	assert.Equal(t, input, PathParams(input, DefaultStyle()))
}

func TestPathParamsMultipleCalls(t *testing.T) {
	input := lines(
		`<a href="{{ path('a', {id: 1}) }}">A</a>`,
		`  <a href="{{ path("b", {id: 2, 'x': 3}) }}">B</a>`,
	)
	expected := lines(
		`<a href="{{ path('a', {`,
		"    'id': 1",
		`}) }}">A</a>`,
		`  <a href="{{ path("b", {`,
		"      'id': 2,",
		"      'x': 3",
		`  }) }}">B</a>`,
	)

	assert.Equal(t, expected, PathParams(input, DefaultStyle()))
}

func TestPathParamsIgnoresOtherHelpers(t *testing.T) {
	input := `<a href="{{ url_path('a', {id: 1}) }}{{ url('a', {id: 1}) }}">x</a>`
	assert.Equal(t, input, PathParams(input, DefaultStyle()))
}

func TestPathParamsIdempotent(t *testing.T) {
	input := lines("<twig:Link", `    href="{{ path('x', {id: 1, b: 2}) }}"`, "/>")
	once := PathParams(input, DefaultStyle())
	require.NotEqual(t, input, once)
	assert.Equal(t, once, PathParams(once, DefaultStyle()))
}

func TestScanComponents(t *testing.T) {
	text := lines(
		"<div>",
		`  <twig:Card title="A" {{ ...rest }}>`,
		`    <twig:Icon name="x"/><twig:Badge`,
		`        count="{{ n > 1 }}" />`,
		"  </twig:Card>",
		"</div>",
	)

	components := ScanComponents(text)
	require.Len(t, components, 3)

	assert.Equal(t, "Card", components[0].Name)
	assert.Equal(t, 2, components[0].Line)
	assert.Equal(t, []Attribute{{Name: "title", Value: `"A"`}, {Name: "{{ ...rest }}"}}, components[0].Attributes)

	assert.Equal(t, "Icon", components[1].Name)
	assert.Equal(t, 3, components[1].Line)

	assert.Equal(t, "Badge", components[2].Name)
	assert.Equal(t, []Attribute{{Name: "count", Value: `"{{ n > 1 }}"`}}, components[2].Attributes)
}
