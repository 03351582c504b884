package pmac

import "regexp"

// Rule keywords. Exactly one rule matches any command; Unmatched is last.
const (
	KeywordMove      = "MOVE"
	KeywordType      = "TYPE"
	KeywordVersion   = "VERSION"
	KeywordSetM      = "MSET"
	KeywordGetM      = "MGET"
	KeywordSetI      = "ISET"
	KeywordGetI      = "IGET"
	KeywordStatus    = "STATUS"
	KeywordStop      = "STOP"
	KeywordUnmatched = "UNMATCHED"
)

type rule struct {
	keyword string
	pattern *regexp.Regexp
}

// rules are tried in order against the start of the command; the first
// match wins and only the matched prefix is handed to the handler.
var rules = []rule{
	{KeywordMove, regexp.MustCompile(`^#[0-9]+\s+(?:I[0-9]+=[0-9.]+\s+)*J=[0-9-]+`)},
	{KeywordType, regexp.MustCompile(`^(?:TYPE|type)`)},
	{KeywordVersion, regexp.MustCompile(`^(?:VERSION|version)`)},
	{KeywordSetM, regexp.MustCompile(`^M[0-9]+\s*=\s*[0-9]+`)},
	{KeywordGetM, regexp.MustCompile(`^M[0-9]+`)},
	{KeywordSetI, regexp.MustCompile(`^I[0-9]+\s*=\s*[0-9]+`)},
	{KeywordGetI, regexp.MustCompile(`^I[0-9]+`)},
	{KeywordStatus, regexp.MustCompile(`^#[0-9]+\?`)},
	{KeywordStop, regexp.MustCompile(`^#[0-9]+J/`)},
}

// match returns the keyword of the first matching rule and the matched text.
// Commands no rule accepts map to KeywordUnmatched with the whole command.
func match(cmd string) (string, string) {
	for _, r := range rules {
		if m := r.pattern.FindString(cmd); m != "" {
			return r.keyword, m
		}
	}
	return KeywordUnmatched, cmd
}
