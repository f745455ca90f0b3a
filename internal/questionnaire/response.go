package questionnaire

import (
	"sort"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-unit/internal/content"
)

// xAPI response delimiters.
const (
	itemDelim  = "[,]"
	pairDelim  = "[.]"
	rangeDelim = "[:]"
)

// pattern is a parsed correct or exit response pattern.
type pattern struct {
	value        string
	caseMatters  bool
	orderMatters bool
}

// parsePattern strips the leading {case_matters=..}, {order_matters=..} and
// {lang=..} modifiers of an xAPI response pattern.
func parsePattern(itype content.InteractionType, raw string) pattern {
	p := pattern{
		orderMatters: itype != content.InteractionChoice && itype != content.InteractionMatching,
	}
	for strings.HasPrefix(raw, "{") {
		end := strings.Index(raw, "}")
		if end < 0 {
			break
		}
		key, val, _ := strings.Cut(raw[1:end], "=")
		switch key {
		case "case_matters":
			p.caseMatters = val == "true"
		case "order_matters":
			p.orderMatters = val == "true"
		case "lang":
		default:
			// Not a modifier: the pattern itself starts with a brace.
			p.value = raw
			return p
		}
		raw = raw[end+1:]
	}
	p.value = raw
	return p
}

func (p pattern) matches(itype content.InteractionType, response string) bool {
	switch itype {
	case content.InteractionNumeric:
		return numericMatch(p.value, response)
	case content.InteractionFillIn, content.InteractionLongFillIn:
		if !p.caseMatters {
			return sameItems(strings.ToLower(p.value), strings.ToLower(response), p.orderMatters)
		}
	}
	return sameItems(p.value, response, p.orderMatters)
}

func sameItems(want, got string, ordered bool) bool {
	if ordered {
		return want == got
	}
	a := splitItems(want)
	b := splitItems(got)
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// numericMatch supports exact values and "min[:]max" ranges with open ends.
func numericMatch(want, got string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(got), 64)
	if err != nil {
		return false
	}
	lo, hi, isRange := strings.Cut(want, rangeDelim)
	if !isRange {
		w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
		return err == nil && w == v
	}
	if lo != "" {
		lower, err := strconv.ParseFloat(lo, 64)
		if err != nil || v < lower {
			return false
		}
	}
	if hi != "" {
		upper, err := strconv.ParseFloat(hi, 64)
		if err != nil || v > upper {
			return false
		}
	}
	return true
}

func splitItems(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, itemDelim)
}

// MatchesAny reports whether response matches one of the patterns.
func MatchesAny(itype content.InteractionType, response string, patterns []string) bool {
	for _, raw := range patterns {
		if parsePattern(itype, raw).matches(itype, response) {
			return true
		}
	}
	return false
}

// ScoreResponse scores a response. A question score replaces its components'
// scores and is earned only by a correct response. Otherwise the scores of
// every component named in the response are summed.
func ScoreResponse(d content.QuestionDefinition, response string) float64 {
	if d.Score != nil {
		if MatchesAny(d.InteractionType, response, d.CorrectResponsesPattern) {
			return *d.Score
		}
		return 0
	}

	named := make(map[string]bool)
	for _, item := range splitItems(response) {
		for _, id := range strings.Split(item, pairDelim) {
			named[id] = true
		}
	}

	var total float64
	for _, c := range d.Components() {
		if c.Score != nil && named[c.ID] {
			total += *c.Score
		}
	}
	return total
}
