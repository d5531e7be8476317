package docpipe

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractionQuality captures metrics about PDF text extraction quality.
// It is informational: acceptance is decided by CheckProse.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
}

// NeedsOCR returns true if the PDF likely needs OCR to extract text.
func (q *ExtractionQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

func measurePDF(ctx *model.Context, pages []string, text string) *ExtractionQuality {
	q := &ExtractionQuality{
		PageCount:      len(pages),
		PrintableRatio: computePrintableRatio(text),
		WordlikeRatio:  computeWordlikeRatio(text),
	}
	if ctx != nil {
		q.PageCount = ctx.PageCount
		q.HasImageStreams = detectImageStreams(ctx)
	}
	if q.PageCount > 0 {
		chars := 0
		for _, p := range pages {
			chars += utf8.RuneCountInString(p)
		}
		q.CharsPerPage = float64(chars) / float64(q.PageCount)
	}
	return q
}

// computePrintableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func computePrintableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF: // private use area
		return true
	case r == 0xFFFD:
		return true
	case r < 0x0020 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}

// computeWordlikeRatio returns the ratio of word-like tokens (length 2-15) to total tokens.
func computeWordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := utf8.RuneCountInString(f)
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
