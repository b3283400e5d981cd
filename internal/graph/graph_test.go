package graph

import (
	"testing"

	"twig-cs-formatter/internal/reflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsagesGroupsByComponent(t *testing.T) {
	text := `<twig:Card title="a" size="lg" />
<div>
    <twig:Alert type="info" {{ ...attrs }} />
    <twig:Card :title="b" footer />
</div>`

	usages := Usages(reflow.ScanComponents(text))

	require.Len(t, usages, 2)
	assert.Equal(t, Usage{
		Component:  "Card",
		Attributes: []string{"footer", "size", "title"},
		Lines:      []int{1, 4},
	}, usages[0])
	assert.Equal(t, Usage{
		Component:  "Alert",
		Attributes: []string{"type"},
		Lines:      []int{3},
	}, usages[1])
}

func TestUsagesEmpty(t *testing.T) {
	assert.Empty(t, Usages(reflow.ScanComponents("<div>plain</div>")))
}

func TestRecordConversions(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, toStrings([]any{"a", "b"}))
	assert.Equal(t, []int{3, 7}, toInts([]any{int64(3), int64(7)}))
	assert.Empty(t, toStrings(nil))
	assert.Empty(t, toInts("nope"))
}
