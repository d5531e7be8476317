package docpipe

// Format is the extraction class of an input, derived once per request.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Binary reports whether the format is decoded from a binary container.
// Binary formats are the ones where a broken decoder can leak structure
// instead of prose, so they get the full prose check.
func (f Format) Binary() bool {
	return f == FormatPDF || f == FormatDocx
}

// Label is the human name used in error messages.
func (f Format) Label() string {
	switch f {
	case FormatPDF:
		return "PDF"
	case FormatDocx:
		return "DOCX"
	case FormatHTML:
		return "HTML"
	default:
		return "text"
	}
}

// Document is the result of extracting text from raw bytes.
type Document struct {
	Format   Format             `json:"format"`
	Text     string             `json:"text"`
	Markdown string             `json:"markdown,omitempty"` // HTML sources only, when enabled
	Quality  *ExtractionQuality `json:"quality,omitempty"`  // PDF only
}
