package ingest

import (
	"strings"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/docpipe"
)

// Kind names the populated variant of a Request.
type Kind string

const (
	KindURL    Kind = "url"
	KindUpload Kind = "upload"
	KindText   Kind = "text"
)

// Request is one ingestion input. Exactly one variant is populated; build
// it with URL, Upload or Text.
type Request struct {
	Kind Kind

	// KindURL
	URL string

	// KindUpload
	Filename    string
	ContentType string
	Data        []byte

	// KindText
	Text string
}

// URL builds a fetch request.
func URL(rawURL string) Request { return Request{Kind: KindURL, URL: rawURL} }

// Upload builds an upload request. contentType may be empty.
func Upload(filename, contentType string, data []byte) Request {
	return Request{Kind: KindUpload, Filename: filename, ContentType: contentType, Data: data}
}

// Text builds a pasted-text request.
func Text(text string) Request { return Request{Kind: KindText, Text: text} }

// errMissing is the answer to a request naming no input at all.
const errMissing = "Missing url or text"

// Validate checks that exactly the variant named by Kind is populated.
func (r Request) Validate() error {
	hasURL := strings.TrimSpace(r.URL) != ""
	hasUpload := r.Data != nil || r.Filename != ""
	hasText := strings.TrimSpace(r.Text) != ""

	switch r.Kind {
	case KindURL:
		if hasUpload || hasText {
			return apperr.New(apperr.ErrInvalidInput, "Provide exactly one of url, text or file")
		}
		if !hasURL {
			return apperr.New(apperr.ErrInvalidInput, errMissing)
		}
	case KindUpload:
		if hasURL || hasText {
			return apperr.New(apperr.ErrInvalidInput, "Provide exactly one of url, text or file")
		}
		if len(r.Data) == 0 {
			return apperr.New(apperr.ErrInvalidInput, "Uploaded file is empty")
		}
	case KindText:
		if hasURL || hasUpload {
			return apperr.New(apperr.ErrInvalidInput, "Provide exactly one of url, text or file")
		}
		if !hasText {
			return apperr.New(apperr.ErrInvalidInput, errMissing)
		}
	default:
		return apperr.New(apperr.ErrInvalidInput, errMissing)
	}
	return nil
}

// source is the provenance label of a request.
func (r Request) source() string {
	switch r.Kind {
	case KindURL:
		return strings.TrimSpace(r.URL)
	case KindUpload:
		if r.Filename == "" {
			return "upload"
		}
		return r.Filename
	default:
		return "Pasted text"
	}
}

// Result is the normalised text of one ingestion and its provenance.
type Result struct {
	Content  string                     `json:"content"`
	Source   string                     `json:"source"`
	Markdown string                     `json:"markdown,omitempty"`
	Format   docpipe.Format             `json:"-"`
	Quality  *docpipe.ExtractionQuality `json:"-"`
}
