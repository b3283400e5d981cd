package shield

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const suffixSpace = 36 * 36 * 36 * 36 * 36 * 36

// TokenSource generates placeholder tokens such as __TWIG_COMMENT_0_k3x9ab__.
type TokenSource struct {
	suffix func() string
}

// NewTokenSource creates a TokenSource. A nil suffix func draws a random
// six character base-36 suffix.
func NewTokenSource(suffix func() string) *TokenSource {
	if suffix == nil {
		suffix = randomSuffix
	}
	return &TokenSource{suffix: suffix}
}

// Next returns a token for entry index of kind that does not occur in source.
func (ts *TokenSource) Next(kind Kind, index int, source string) string {
	for attempt := 0; ; attempt++ {
		suffix := ts.suffix()
		if attempt > 0 {
			suffix += strconv.Itoa(attempt)
		}
		token := fmt.Sprintf("__TWIG_%s_%d_%s__", kind, index, suffix)
		if !strings.Contains(source, token) {
			return token
		}
	}
}

func randomSuffix() string {
	s := strconv.FormatInt(rand.Int63n(suffixSpace), 36)
	return strings.Repeat("0", 6-len(s)) + s
}
