package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/clarion-chat/clarion/internal/infra/config"
)

// ErrNoRuleMatched indicates a configuration defect: no rule matched the
// profile, which startup validation should prevent via a fallback rule.
var ErrNoRuleMatched = errors.New("no response rule matched the profile")

// Op is the match operator of one compiled criterion.
type Op int

const (
	OpEquals Op = iota
	OpContains
	OpRegexp
	OpAny // rag_results is "match" or "partial"
)

// Criterion is one compiled match condition against a profile field.
type Criterion struct {
	Field string
	Op    Op
	Value string
	re    *regexp.Regexp // set only for OpRegexp
}

// Rule is a compiled response rule. Criteria are evaluated with AND
// semantics; an empty criteria list always matches (the fallback rule).
type Rule struct {
	Index         int
	Criteria      []Criterion
	Connection    string
	Model         string
	Prompt        string
	MaxTokens     int
	Temperature   float32
	Tools         bool
	MaxIterations int
}

// profileFields are the names criteria may reference.
var profileFields = map[string]struct{}{
	"rag_results": {},
	"intent":      {},
	"service":     {},
	"collection":  {},
}

const (
	suffixContains = "_contains"
	suffixRegexp   = "_regexp"
)

// CompileRules converts configured response rules into their compiled form,
// rejecting unknown fields and invalid operator combinations at load time
// instead of at match time.
func CompileRules(rules []config.ResponseRule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i, rc := range rules {
		criteria, err := compileCriteria(rc.Match)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, Rule{
			Index:         i,
			Criteria:      criteria,
			Connection:    rc.LLM,
			Model:         rc.Model,
			Prompt:        rc.Prompt,
			MaxTokens:     rc.MaxTokens,
			Temperature:   rc.Temperature,
			Tools:         rc.Tools,
			MaxIterations: rc.MaxIterations,
		})
	}
	return out, nil
}

func compileCriteria(match map[string]string) ([]Criterion, error) {
	// Deterministic order is irrelevant for AND semantics but keeps error
	// messages and tests stable.
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Criterion, 0, len(keys))
	for _, key := range keys {
		value := match[key]
		crit, err := compileCriterion(key, value)
		if err != nil {
			return nil, err
		}
		out = append(out, crit)
	}
	return out, nil
}

func compileCriterion(key, value string) (Criterion, error) {
	switch {
	case strings.HasSuffix(key, suffixContains):
		field := strings.TrimSuffix(key, suffixContains)
		if err := checkField(field); err != nil {
			return Criterion{}, err
		}
		return Criterion{Field: field, Op: OpContains, Value: value}, nil

	case strings.HasSuffix(key, suffixRegexp):
		field := strings.TrimSuffix(key, suffixRegexp)
		if err := checkField(field); err != nil {
			return Criterion{}, err
		}
		re, err := compilePattern(value)
		if err != nil {
			return Criterion{}, fmt.Errorf("field %q: %w", field, err)
		}
		return Criterion{Field: field, Op: OpRegexp, Value: value, re: re}, nil

	case key == "rag_results" && value == "any":
		return Criterion{Field: key, Op: OpAny, Value: value}, nil

	default:
		if err := checkField(key); err != nil {
			return Criterion{}, err
		}
		return Criterion{Field: key, Op: OpEquals, Value: value}, nil
	}
}

func checkField(field string) error {
	if _, ok := profileFields[field]; !ok {
		return fmt.Errorf("unknown profile field %q", field)
	}
	return nil
}

// compilePattern accepts either a bare pattern or the /pattern/flags form.
// Supported flags: i (case-insensitive), s (dot matches newline),
// m (multi-line anchors).
func compilePattern(value string) (*regexp.Regexp, error) {
	pattern := value
	if len(value) >= 2 && strings.HasPrefix(value, "/") {
		if end := strings.LastIndex(value[1:], "/"); end >= 0 {
			body := value[1 : end+1]
			flags := value[end+2:]
			if valid, err := regexpFlags(flags); err != nil {
				return nil, err
			} else if valid != "" {
				body = "(?" + valid + ")" + body
			}
			pattern = body
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", value, err)
	}
	return re, nil
}

func regexpFlags(flags string) (string, error) {
	var out strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			out.WriteRune(f)
		case 'g':
			// Global flag is meaningless for a boolean match; ignored.
		default:
			return "", fmt.Errorf("unsupported regexp flag %q", string(f))
		}
	}
	return out.String(), nil
}

// Match evaluates rules strictly in list order and returns the first rule
// whose criteria are all satisfied.
func Match(p Profile, rules []Rule) (*Rule, error) {
	for i := range rules {
		if ruleMatches(p, &rules[i]) {
			return &rules[i], nil
		}
	}
	return nil, ErrNoRuleMatched
}

func ruleMatches(p Profile, r *Rule) bool {
	for _, crit := range r.Criteria {
		if !criterionMatches(p, crit) {
			return false
		}
	}
	return true
}

func criterionMatches(p Profile, crit Criterion) bool {
	actual := profileField(p, crit.Field)
	switch crit.Op {
	case OpContains:
		return strings.Contains(actual, crit.Value)
	case OpRegexp:
		return crit.re.MatchString(actual)
	case OpAny:
		return p.RAGResults == ResultMatch || p.RAGResults == ResultPartial
	default:
		return actual == crit.Value
	}
}

func profileField(p Profile, name string) string {
	switch name {
	case "rag_results":
		return string(p.RAGResults)
	case "intent":
		return p.Intent
	case "service":
		return p.Service
	case "collection":
		return p.Collection
	default:
		return ""
	}
}
