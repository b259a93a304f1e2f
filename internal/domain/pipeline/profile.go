package pipeline

import "strings"

// BuildProfile merges the retrieval envelope and intent into the canonical
// context object. Pure function, no I/O, no failure modes.
func BuildProfile(env Envelope, intent string) Profile {
	switch env.Result {
	case ResultMatch:
		p := Profile{
			RAGResults: ResultMatch,
			Service:    env.Match.Service,
			Collection: env.Match.Collection,
			Intent:     intent,
			Documents:  env.Match.Documents,
		}
		if p.Intent == "" {
			p.Intent = env.Match.Identifier()
		}
		return p

	case ResultPartial:
		p := Profile{
			RAGResults: ResultPartial,
			Intent:     intent,
			Documents:  flattenDocuments(env.Partials),
		}
		// An intent encoding "{service}/{collection}" is split out for
		// downstream rule matching.
		if service, collection, ok := splitIdentifier(intent); ok {
			p.Service = service
			p.Collection = collection
		}
		return p

	default:
		return Profile{
			RAGResults: ResultNone,
			Intent:     intent,
			Documents:  []Document{},
		}
	}
}

func flattenDocuments(items []RetrievalItem) []Document {
	var total int
	for _, it := range items {
		total += len(it.Documents)
	}
	out := make([]Document, 0, total)
	for _, it := range items {
		out = append(out, it.Documents...)
	}
	return out
}

func splitIdentifier(intent string) (service, collection string, ok bool) {
	before, after, found := strings.Cut(intent, "/")
	if !found || before == "" || after == "" {
		return "", "", false
	}
	return before, after, true
}
