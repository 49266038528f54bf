// Package synonyms expands queries against a table of Indonesian legal-term
// synonym groups. The table is data, not code.
package synonyms

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/synonyms.yaml
var synonymsYAML []byte

type table struct {
	Groups [][]string `yaml:"groups"`
}

// Expander produces up to three query variants: the original, a
// synonym-substituted variant, and a keyword-appended variant.
type Expander struct {
	groups [][]string
}

// NewExpander loads the embedded synonym table.
func NewExpander() (*Expander, error) {
	var t table
	if err := yaml.Unmarshal(synonymsYAML, &t); err != nil {
		return nil, fmt.Errorf("failed to parse synonym table: %w", err)
	}
	return &Expander{groups: t.Groups}, nil
}

// GroupCount returns the number of synonym groups loaded.
func (e *Expander) GroupCount() int {
	return len(e.groups)
}

// Expand returns 1-3 variants of query. The original always comes first.
func (e *Expander) Expand(query string) []string {
	variants := []string{query}
	lowered := strings.ToLower(query)

	substituted := e.substitute(lowered)
	if substituted != "" && substituted != lowered {
		variants = append(variants, substituted)
	}

	appended := e.appendKeywords(lowered)
	if appended != "" && appended != lowered {
		variants = append(variants, appended)
	}

	if len(variants) > 3 {
		variants = variants[:3]
	}
	return variants
}

// substitute replaces the first matched term of up to two groups with that
// group's canonical alternative.
func (e *Expander) substitute(query string) string {
	out := query
	replaced := 0
	for _, group := range e.groups {
		if replaced >= 2 {
			break
		}
		for _, term := range group {
			if !containsTerm(out, term) {
				continue
			}
			alt := alternative(group, term)
			if alt == "" {
				break
			}
			out = replaceTerm(out, term, alt)
			replaced++
			break
		}
	}
	if replaced == 0 {
		return ""
	}
	return out
}

// appendKeywords concatenates up to three alternative terms from matched
// groups onto the query.
func (e *Expander) appendKeywords(query string) string {
	extras := make([]string, 0, 3)
	for _, group := range e.groups {
		if len(extras) >= 3 {
			break
		}
		for _, term := range group {
			if !containsTerm(query, term) {
				continue
			}
			if alt := alternative(group, term); alt != "" && !containsTerm(query, alt) {
				extras = append(extras, alt)
			}
			break
		}
	}
	if len(extras) == 0 {
		return ""
	}
	return query + " " + strings.Join(extras, " ")
}

// alternative picks the canonical (first) term of the group, or the second
// when the matched term already is the canonical one.
func alternative(group []string, matched string) string {
	if len(group) < 2 {
		return ""
	}
	if group[0] == matched {
		return group[1]
	}
	return group[0]
}

func containsTerm(query, term string) bool {
	idx := strings.Index(query, term)
	for idx >= 0 {
		before := idx == 0 || isBoundary(query[idx-1])
		end := idx + len(term)
		after := end == len(query) || isBoundary(query[end])
		if before && after {
			return true
		}
		next := strings.Index(query[idx+1:], term)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func replaceTerm(query, term, repl string) string {
	idx := strings.Index(query, term)
	for idx >= 0 {
		before := idx == 0 || isBoundary(query[idx-1])
		end := idx + len(term)
		after := end == len(query) || isBoundary(query[end])
		if before && after {
			return query[:idx] + repl + query[end:]
		}
		next := strings.Index(query[idx+1:], term)
		if next < 0 {
			return query
		}
		idx += 1 + next
	}
	return query
}

func isBoundary(b byte) bool {
	return !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9')
}
