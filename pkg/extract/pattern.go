package extract

import (
	"context"
	"regexp"
	"strings"
)

// identifierRe matches explicit work ids like "WO-12345".
var identifierRe = regexp.MustCompile(`\b[A-Z]{2,5}-\d{2,8}\b`)

// kvRe matches simple "field: value" lines in a reply.
var kvRe = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z0-9 _]{0,40}?)\s*[:=]\s*(.+?)\s*$`)

// Pattern is a deterministic offline extractor: a work-id regex over
// reply then thread text, plus key/value line scanning for field
// proposals. It backs tests and deployments without an LLM key.
type Pattern struct{}

// NewPattern returns the offline extractor.
func NewPattern() *Pattern { return &Pattern{} }

func (p *Pattern) Extract(ctx context.Context, threadText, replyText string) (Result, error) {
	var res Result
	// the reply wins over older thread context when both carry an id
	if id := identifierRe.FindString(replyText); id != "" {
		res.Identifier = id
	} else if id := identifierRe.FindString(threadText); id != "" {
		res.Identifier = id
	}
	res.IdentifierFound = res.Identifier != ""

	vals := make(map[string]any)
	for _, m := range kvRe.FindAllStringSubmatch(replyText, -1) {
		key := strings.TrimSpace(m[1])
		val := strings.TrimSpace(m[2])
		if key == "" || val == "" {
			continue
		}
		// the id line itself is not a field proposal
		if identifierRe.MatchString(val) && len(vals) == 0 && strings.EqualFold(key, "id") {
			continue
		}
		vals[key] = val
		res.ChangedFields = append(res.ChangedFields, key)
	}
	if len(vals) > 0 {
		res.NewValues = vals
	}
	res.NewRecord = !res.IdentifierFound && len(vals) > 0
	return res, nil
}
