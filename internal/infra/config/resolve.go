// Placeholder resolution: ${VAR} tokens are substituted from the process
// environment on demand. Resolution is a pure transform: it returns a new
// copy and never mutates the loaded tree, so the same Config can be resolved
// repeatedly (and concurrently) with identical results for an unchanged
// environment. Tokens whose variable is not set are left intact.
package config

import (
	"os"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve returns a copy of cfg with every ${VAR} placeholder substituted
// from the environment. cfg itself is never modified.
func Resolve(cfg *Config) *Config {
	out := *cfg // value copy of scalar sections

	out.Connections = make(map[string]Connection, len(cfg.Connections))
	for name, conn := range cfg.Connections {
		conn.BaseURL = expand(conn.BaseURL)
		conn.APIKey = expand(conn.APIKey)
		conn.Model = expand(conn.Model)
		conn.EmbeddingModel = expand(conn.EmbeddingModel)
		out.Connections[name] = conn
	}

	out.Knowledge = make(map[string]KnowledgeService, len(cfg.Knowledge))
	for name, ks := range cfg.Knowledge {
		ks.BaseURL = expand(ks.BaseURL)
		ks.Description = expand(ks.Description)
		out.Knowledge[name] = ks
	}

	out.Collections = make([]CollectionSelection, len(cfg.Collections))
	for i, sel := range cfg.Collections {
		sel.Name = expand(sel.Name)
		out.Collections[i] = sel
	}

	out.Intent.Categories = make(map[string]string, len(cfg.Intent.Categories))
	for name, desc := range cfg.Intent.Categories {
		out.Intent.Categories[name] = expand(desc)
	}

	out.Responses = make([]ResponseRule, len(cfg.Responses))
	for i, rule := range cfg.Responses {
		rule.Prompt = expand(rule.Prompt)
		rule.Model = expand(rule.Model)
		matchCopy := make(map[string]string, len(rule.Match))
		for k, v := range rule.Match {
			matchCopy[k] = expand(v)
		}
		rule.Match = matchCopy
		out.Responses[i] = rule
	}

	out.Audit.Path = expand(cfg.Audit.Path)

	return &out
}

// expand substitutes each ${VAR} whose variable exists in the environment.
// Unset variables leave the token verbatim; a variable set to the empty
// string substitutes the empty string.
func expand(s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		name := token[2 : len(token)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return token
	})
}
