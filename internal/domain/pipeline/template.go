package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// RenderPrompt substitutes {{path}} tokens in a rule's prompt template.
// The reserved token rag_context expands to the newline-joined text of all
// profile documents. Any other token resolves as a dotted path into the
// profile; unresolved tokens are left verbatim so unknown variables pass
// through untouched.
func RenderPrompt(prompt string, p Profile) string {
	return tokenRe.ReplaceAllStringFunc(prompt, func(token string) string {
		path := tokenRe.FindStringSubmatch(token)[1]
		if path == "rag_context" {
			return ragContext(p)
		}
		if val, ok := lookupPath(profileTree(p), path); ok {
			return val
		}
		return token
	})
}

// ragContext joins the text of all profile documents with newlines, in their
// original order. An empty documents list yields an empty string.
func ragContext(p Profile) string {
	texts := make([]string, len(p.Documents))
	for i, d := range p.Documents {
		texts[i] = d.Text
	}
	return strings.Join(texts, "\n")
}

// profileTree exposes the profile as a generic tree for dotted-path lookup.
func profileTree(p Profile) map[string]any {
	docs := make([]any, len(p.Documents))
	for i, d := range p.Documents {
		docs[i] = map[string]any{
			"text":       d.Text,
			"title":      d.Title,
			"source":     d.Source,
			"collection": d.Collection,
		}
	}
	return map[string]any{
		"rag_results": string(p.RAGResults),
		"intent":      p.Intent,
		"service":     p.Service,
		"collection":  p.Collection,
		"documents":   docs,
	}
}

// lookupPath walks a dotted path through nested maps and slices. Numeric
// segments index into slices. Only string leaves resolve; anything else
// reports failure so the caller leaves the token verbatim.
func lookupPath(tree any, path string) (string, bool) {
	current := tree
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return "", false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			current = node[idx]
		default:
			return "", false
		}
	}
	if s, ok := current.(string); ok {
		return s, true
	}
	return "", false
}
