package randid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	for _, n := range []int{1, 6, 64} {
		id := Generate(n)
		assert.Len(t, id, n)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected %q in %q", r, id)
		}
	}

	assert.Empty(t, Generate(0))
	assert.Empty(t, Generate(-1))
}

func TestGenerate_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		seen[Generate(12)] = true
	}
	assert.Len(t, seen, 1000)
}
