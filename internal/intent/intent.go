package intent

import "strings"

// Intent is the canonical narrative role of a script segment.
type Intent string

const (
	Hook     Intent = "hook"
	Problem  Intent = "problem"
	Solution Intent = "solution"
	CTA      Intent = "cta"
	Lede     Intent = "lede"
	Context  Intent = "context"
	Details  Intent = "details"
	Impact   Intent = "impact"
	General  Intent = "general"
)

// keywordRule maps a label substring to a canonical intent. Rules are checked
// in order, so more specific substrings must come before looser ones.
type keywordRule struct {
	substr string
	intent Intent
}

var rules = []keywordRule{
	{"hook", Hook},
	{"attention", Hook},
	{"opening", Hook},
	{"problem", Problem},
	{"pain", Problem},
	{"challenge", Problem},
	{"solution", Solution},
	{"solve", Solution},
	{"benefit", Solution},
	{"cta", CTA},
	{"call to action", CTA},
	{"call-to-action", CTA},
	{"action", CTA},
	{"lede", Lede},
	{"lead", Lede},
	{"headline", Lede},
	{"context", Context},
	{"background", Context},
	{"detail", Details},
	{"body", Details},
	{"impact", Impact},
	{"outcome", Impact},
	{"conclusion", Impact},
}

// Normalize maps a free-form segment label to the canonical taxonomy.
// Unmatched labels map to General. Normalize is total and idempotent:
// already-canonical labels map to themselves.
func Normalize(label string) Intent {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, r := range rules {
		if strings.Contains(l, r.substr) {
			return r.intent
		}
	}
	return General
}
