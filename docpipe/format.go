package docpipe

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/hazyhaar/policyvet/apperr"
)

// uploadExtensions are the file extensions accepted for uploads.
var uploadExtensions = map[string]Format{
	"pdf":  FormatPDF,
	"docx": FormatDocx,
	"doc":  FormatDocx,
	"txt":  FormatText,
	"md":   FormatText,
}

// SupportedUploadExtensions returns the accepted upload extensions.
func SupportedUploadExtensions() []string {
	return []string{"pdf", "docx", "doc", "txt", "md"}
}

// SniffUpload classifies an uploaded file. The extension must be one of
// SupportedUploadExtensions. A declared PDF or Word content type wins over
// the extension; text types never downgrade a binary extension.
func SniffUpload(filename, contentType string) (Format, error) {
	ext := extension(filename)
	byExt, ok := uploadExtensions[ext]
	if !ok {
		if ext == "" {
			return "", apperr.New(apperr.ErrInvalidInput, "Unsupported file type: (none)")
		}
		return "", apperr.Newf(apperr.ErrInvalidInput, "Unsupported file type: .%s", ext)
	}
	if f, ok := formatFromContentType(contentType); ok && f.Binary() {
		return f, nil
	}
	return byExt, nil
}

// SniffURL classifies a fetched resource from the response content type,
// falling back to the URL path suffix when the type is absent or generic.
func SniffURL(rawURL, contentType string) Format {
	if f, ok := formatFromContentType(contentType); ok {
		return f
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch extension(p) {
	case "pdf":
		return FormatPDF
	case "docx", "doc":
		return FormatDocx
	case "txt", "md":
		return FormatText
	default:
		return FormatHTML
	}
}

// formatFromContentType maps a specific media type to a format.
// Generic types (octet-stream, empty, unknown) report ok=false.
func formatFromContentType(contentType string) (Format, bool) {
	if contentType == "" {
		return "", false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	switch {
	case mt == "application/pdf", mt == "application/x-pdf":
		return FormatPDF, true
	case strings.HasPrefix(mt, "application/vnd.openxmlformats"), mt == "application/msword":
		return FormatDocx, true
	case mt == "text/plain", mt == "text/markdown", mt == "text/x-markdown":
		return FormatText, true
	case mt == "text/html", mt == "application/xhtml+xml", mt == "application/xml", mt == "text/xml":
		return FormatHTML, true
	}
	return "", false
}

// extension returns the lower-cased extension without the dot.
func extension(name string) string {
	ext := path.Ext(strings.ReplaceAll(name, `\`, "/"))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
