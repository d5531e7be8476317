package docpipe

import (
	"context"
	"strings"
)

// extractText passes plain text (and Markdown) through unchanged apart from
// a leading byte-order mark, invalid UTF-8 and surrounding whitespace.
func extractText(_ context.Context, data []byte) (*Document, error) {
	s := strings.TrimPrefix(string(data), "\ufeff")
	s = strings.ToValidUTF8(s, "\ufffd")
	return &Document{Text: strings.TrimSpace(s)}, nil
}
