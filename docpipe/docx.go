package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// paragraphSeparator joins DOCX paragraphs in the raw text output.
const paragraphSeparator = "\n\n"

// extractDocx returns the raw text of word/document.xml, discarding all
// formatting. Paragraphs are separated by a blank line, tabs and line breaks
// inside a paragraph are kept.
func extractDocx(ctx context.Context, data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, parseError(FormatDocx, err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, parseError(FormatDocx, errors.New("word/document.xml not found in archive"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, parseError(FormatDocx, fmt.Errorf("open document.xml: %w", err))
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(ctx, rc)
	if err != nil {
		return nil, parseError(FormatDocx, err)
	}
	return &Document{Text: strings.Join(paragraphs, paragraphSeparator)}, nil
}

// docxParagraphs walks the WordprocessingML token stream and collects the
// text runs of each non-empty paragraph.
func docxParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inText := false
	inProps := 0 // depth of paragraph/run property elements, whose tabs are tab stops

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "pPr", "rPr":
				inProps++
			case "t":
				inText = true
			case "tab":
				if inProps == 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr", "rPr":
				inProps--
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		}
	}
	return paragraphs, nil
}
