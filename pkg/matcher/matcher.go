// Package matcher implements the Template Matcher (spec.md §4.B):
// deterministic, greedy-minimal binding of a `{{var}}`-templated prompt
// against a candidate string.
package matcher

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// segment is one piece of a parsed template: either a literal run of text
// or a placeholder name.
type segment struct {
	literal     string
	placeholder string
	isPlaceholder bool
}

// Result is the outcome of Match.
type Result struct {
	Matched   bool
	Variables map[string]string
}

// Match implements the contract `match(template, candidate) →
// {matched, variables}` from spec.md §4.B. Matching segments the template
// into literal fragments separated by `{{var}}` placeholders, then scans
// the candidate left-to-right requiring every literal to appear in order;
// the substring between consecutive literals binds to the placeholder
// between them. Adjacent placeholders (no literal between them) are
// ambiguous: the first takes a non-empty prefix up to the next literal,
// the second takes the remainder — or, with no following literal, the
// first binds empty and the second takes everything left.
func Match(template, candidate string) Result {
	segments := parseTemplate(template)
	if len(segments) == 0 {
		if candidate == "" {
			return Result{Matched: true, Variables: map[string]string{}}
		}
		return Result{Matched: false}
	}

	vars := map[string]string{}
	pos := 0

	for i := 0; i < len(segments); i++ {
		seg := segments[i]
		if !seg.isPlaceholder {
			idx := strings.Index(candidate[pos:], seg.literal)
			if idx < 0 {
				return Result{Matched: false}
			}
			pos += idx + len(seg.literal)
			continue
		}

		// seg is a placeholder. Determine how far it can extend: up to the
		// next literal (if any), honoring the adjacent-placeholder policy
		// when the following segment is also a placeholder.
		nextLiteralIdx := -1
		nextLiteral := ""
		j := i + 1
		for ; j < len(segments); j++ {
			if !segments[j].isPlaceholder {
				nextLiteral = segments[j].literal
				break
			}
		}
		if j < len(segments) {
			rel := strings.Index(candidate[pos:], nextLiteral)
			if rel < 0 {
				return Result{Matched: false}
			}
			nextLiteralIdx = pos + rel
		}

		if i+1 < len(segments) && segments[i+1].isPlaceholder {
			// Adjacent placeholders: this one takes a non-empty prefix up to
			// the next literal; the following placeholder absorbs the rest
			// up to that literal. If there is no following literal at all,
			// this one binds empty and the remainder is left to the chain.
			if nextLiteralIdx < 0 {
				vars[seg.placeholder] = ""
				continue
			}
			span := candidate[pos:nextLiteralIdx]
			if len(span) == 0 {
				return Result{Matched: false}
			}
			// first placeholder takes one rune as its non-empty prefix,
			// the adjacent placeholder(s) absorb the remainder.
			first := string([]rune(span)[:1])
			vars[seg.placeholder] = first
			pos += len(first)
			continue
		}

		if nextLiteralIdx < 0 {
			vars[seg.placeholder] = candidate[pos:]
			pos = len(candidate)
			continue
		}
		vars[seg.placeholder] = candidate[pos:nextLiteralIdx]
		pos = nextLiteralIdx
	}

	return Result{Matched: true, Variables: vars}
}

// parseTemplate splits a template string into an ordered list of literal
// and placeholder segments.
func parseTemplate(template string) []segment {
	if template == "" {
		return nil
	}
	var segments []segment
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		start, end := m[0], m[1]
		nameStart, nameEnd := m[2], m[3]
		if start > last {
			segments = append(segments, segment{literal: template[last:start]})
		}
		segments = append(segments, segment{placeholder: template[nameStart:nameEnd], isPlaceholder: true})
		last = end
	}
	if last < len(template) {
		segments = append(segments, segment{literal: template[last:]})
	}
	return segments
}
