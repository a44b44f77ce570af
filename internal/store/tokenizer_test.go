package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeCode_KeepsOriginalAndSplitForms(t *testing.T) {
	tokens := TokenizeCode("getUserById")
	assert.Contains(t, tokens, "getuserbyid")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
}

func TestTokenizeCode_SnakeCase(t *testing.T) {
	tokens := TokenizeCode("parent_scope_id")
	assert.Contains(t, tokens, "parent_scope_id")
	assert.Contains(t, tokens, "parent")
	assert.Contains(t, tokens, "scope")
}

func TestTokenizeCode_Acronym(t *testing.T) {
	parts := SplitIdentifier("HTTPHandler")
	require.Equal(t, []string{"HTTP", "Handler"}, parts)
}

func TestTokenizeCode_FiltersShortTokens(t *testing.T) {
	tokens := TokenizeCode("a_b")
	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "b")
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"func", "return"})
	out := FilterStopWords([]string{"func", "compute", "return"}, stop)
	assert.Equal(t, []string{"compute"}, out)
}
