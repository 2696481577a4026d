package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsValid(t *testing.T) {
	require.NoError(t, Validate())
}

func TestLookupReturnsMatchingKey(t *testing.T) {
	for _, k := range []string{"friendly", "academic", "creative", "practical", "socratic"} {
		p, ok := Lookup(k)
		require.True(t, ok, k)
		assert.Equal(t, Key(k), p.ID)
		assert.NotEmpty(t, p.Directive())
		assert.NotEmpty(t, p.FallbackLine())
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, k := range []string{"", "pirate", "Socratic"} {
		_, ok := Lookup(k)
		assert.False(t, ok, k)
	}
}

func TestAllIsStableAndComplete(t *testing.T) {
	all := All()
	require.Len(t, all, 5)
	assert.Equal(t, Friendly, all[0].ID)
	assert.Equal(t, Socratic, all[4].ID)
	assert.Equal(t, all, All())
}

func TestCreativeRunsHotter(t *testing.T) {
	creative, _ := Lookup("creative")
	for _, p := range All() {
		if p.ID == Creative {
			continue
		}
		assert.Greater(t, creative.Temperature(), p.Temperature(), p.ID)
	}
}

func TestSocraticDirectiveAsksQuestions(t *testing.T) {
	p, _ := Lookup("socratic")
	assert.Contains(t, p.Directive(), "guiding questions")
}
