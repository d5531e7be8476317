package docpipe

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/policyvet/apperr"
)

// Thresholds of the prose check.
const (
	// MinTextLength is the minimum number of characters of accepted text.
	MinTextLength = 50
	// MaxStructuralMarkers is the number of distinct PDF structural markers
	// tolerated before the text is treated as PDF internals.
	MaxStructuralMarkers = 2
	// MinWordTokens is the minimum number of word-like tokens.
	MinWordTokens = 20
	// minWordLen is the length a token must exceed to count as word-like.
	minWordLen = 2
)

// structuralMarkers are tokens of PDF object syntax. Matched case-insensitively.
var structuralMarkers = []string{
	"/type /font",
	"/basefont",
	"/encoding",
	"endobj",
	"stream",
	"/filter",
	"/length",
	"%pdf-",
	"xref",
	"trailer",
}

// Rejection reasons returned by CheckProse.
const (
	ReasonTooShort     = "too_short"
	ReasonPDFInternals = "pdf_internals"
	ReasonTooFewWords  = "too_few_words"
)

// IsLikelyProseText reports whether text looks like rendered natural language
// rather than leaked document structure.
func IsLikelyProseText(text string) bool {
	return proseReason(text) == ""
}

// CheckProse returns nil when IsLikelyProseText holds, and an
// ErrExtractionRejected error carrying message otherwise.
func CheckProse(text, message string) error {
	reason := proseReason(text)
	if reason == "" {
		return nil
	}
	e := apperr.New(apperr.ErrExtractionRejected, message)
	e.Cause = &RejectionError{Reason: reason}
	return e
}

// CheckStructure applies the length and structural marker rules but not
// the word count. Word documents never leak object syntax by accident, so a
// short but well-formed paragraph is accepted.
func CheckStructure(text, message string) error {
	reason := ""
	switch trimmed := strings.TrimSpace(text); {
	case utf8.RuneCountInString(trimmed) < MinTextLength:
		reason = ReasonTooShort
	case CountStructuralMarkers(trimmed) > MaxStructuralMarkers:
		reason = ReasonPDFInternals
	}
	if reason == "" {
		return nil
	}
	e := apperr.New(apperr.ErrExtractionRejected, message)
	e.Cause = &RejectionError{Reason: reason}
	return e
}

// CheckLength applies only the minimum length rule.
func CheckLength(text, message string) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= MinTextLength {
		return nil
	}
	e := apperr.New(apperr.ErrExtractionRejected, message)
	e.Cause = &RejectionError{Reason: ReasonTooShort}
	return e
}

// RejectionError names the rule that rejected a text.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return "prose check: " + e.Reason }

func proseReason(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextLength {
		return ReasonTooShort
	}
	if CountStructuralMarkers(text) > MaxStructuralMarkers {
		return ReasonPDFInternals
	}
	if CountWordTokens(text) < MinWordTokens {
		return ReasonTooFewWords
	}
	return ""
}

// CountStructuralMarkers returns how many distinct structural markers occur in text.
func CountStructuralMarkers(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, m := range structuralMarkers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}

// CountWordTokens counts whitespace-separated tokens longer than two
// characters that start with a letter.
func CountWordTokens(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		r, _ := utf8.DecodeRuneInString(f)
		if unicode.IsLetter(r) && utf8.RuneCountInString(f) > minWordLen {
			n++
		}
	}
	return n
}
