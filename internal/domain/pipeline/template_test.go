package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPromptRagContext(t *testing.T) {
	p := Profile{Documents: []Document{{Text: "first"}, {Text: "second"}, {Text: "third"}}}
	out := RenderPrompt("Context:\n{{rag_context}}", p)
	assert.Equal(t, "Context:\nfirst\nsecond\nthird", out)
}

func TestRenderPromptRagContextEmptyDocuments(t *testing.T) {
	out := RenderPrompt("Context: {{rag_context}}.", Profile{})
	assert.Equal(t, "Context: .", out)
}

func TestRenderPromptProfileFields(t *testing.T) {
	p := Profile{RAGResults: ResultMatch, Intent: "recipes/comfort_soups", Service: "recipes", Collection: "comfort_soups"}
	out := RenderPrompt("{{rag_results}} {{intent}} {{service}} {{collection}}", p)
	assert.Equal(t, "match recipes/comfort_soups recipes comfort_soups", out)
}

func TestRenderPromptDottedPath(t *testing.T) {
	p := Profile{Documents: []Document{{Text: "minestrone", Title: "Soup"}}}
	out := RenderPrompt("{{documents.0.title}}: {{documents.0.text}}", p)
	assert.Equal(t, "Soup: minestrone", out)
}

func TestRenderPromptUnresolvedTokenLeftVerbatim(t *testing.T) {
	out := RenderPrompt("hello {{unknown.path}} world", Profile{})
	assert.Equal(t, "hello {{unknown.path}} world", out)
}

func TestRenderPromptResolvableTokensLeaveNoMarkers(t *testing.T) {
	p := Profile{RAGResults: ResultPartial, Intent: "x", Documents: []Document{{Text: "d"}}}
	out := RenderPrompt("{{rag_results}} / {{intent}} / {{rag_context}}", p)
	assert.False(t, strings.Contains(out, "{{"))
}

func TestRenderPromptWhitespaceInToken(t *testing.T) {
	out := RenderPrompt("{{ intent }}", Profile{Intent: "smalltalk"})
	assert.Equal(t, "smalltalk", out)
}

func TestRenderPromptNonStringLeafUnresolved(t *testing.T) {
	p := Profile{Documents: []Document{{Text: "d"}}}
	// documents resolves to a list, not a string; token stays verbatim.
	out := RenderPrompt("{{documents}}", p)
	assert.Equal(t, "{{documents}}", out)
}
