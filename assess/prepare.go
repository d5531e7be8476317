package assess

import (
	"strings"

	"github.com/hazyhaar/policyvet/apperr"
)

// DefaultMaxTextLength is the longest policy text, in characters, sent to the
// assessment service.
const DefaultMaxTextLength = 100_000

// Request is the body sent to the assessment service.
type Request struct {
	Model         string       `json:"model,omitempty"`
	PolicyContent string       `json:"policyContent"`
	Obligations   []Obligation `json:"obligations"`

	// Truncated reports that PolicyContent was cut to the length limit.
	Truncated bool `json:"-"`
}

// Prepare builds an assessment request. Content longer than maxLen characters
// is truncated, never rejected. maxLen <= 0 means DefaultMaxTextLength.
func Prepare(policyContent string, obligations []Obligation, maxLen int) (*Request, error) {
	if strings.TrimSpace(policyContent) == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "Missing or invalid policyContent")
	}
	if len(obligations) == 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "Missing or empty obligations array")
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	content, cut := Truncate(policyContent, maxLen)
	return &Request{PolicyContent: content, Obligations: obligations, Truncated: cut}, nil
}

// Truncate returns the first maxLen characters of s and whether anything was cut.
func Truncate(s string, maxLen int) (string, bool) {
	// A string of at most maxLen bytes holds at most maxLen characters.
	if len(s) <= maxLen {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i], true
		}
		n++
	}
	return s, false
}
