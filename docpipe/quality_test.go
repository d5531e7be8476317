package docpipe

import "testing"

func TestPrintableRatio_Normal(t *testing.T) {
	// WHAT: Normal text has high printable ratio.
	// WHY: Validates baseline quality scoring.
	ratio := computePrintableRatio("This is a normal sentence with standard characters.")
	if ratio < 0.95 {
		t.Errorf("printable ratio = %f, want > 0.95", ratio)
	}
}

func TestPrintableRatio_Garbage(t *testing.T) {
	// WHAT: PUA and control chars produce low printable ratio.
	// WHY: Detects garbled PDF extraction (CIDFont without ToUnicode).
	garbage := "abcdefghi\x01\x02\x03\x04\x05"
	ratio := computePrintableRatio(garbage)
	if ratio >= 0.85 {
		t.Errorf("printable ratio = %f, want < 0.85", ratio)
	}
}

func TestWordlikeRatio_Normal(t *testing.T) {
	ratio := computeWordlikeRatio("This is a normal sentence with standard words inside")
	if ratio < 0.70 {
		t.Errorf("wordlike ratio = %f, want > 0.70", ratio)
	}
}

func TestWordlikeRatio_SingleChar(t *testing.T) {
	// WHAT: Single-char tokens produce low wordlike ratio.
	// WHY: Detects broken character-by-character extraction.
	ratio := computeWordlikeRatio("a b c d e f g h i j k l")
	if ratio >= 0.40 {
		t.Errorf("wordlike ratio = %f, want < 0.40", ratio)
	}
}

func TestNeedsOCR(t *testing.T) {
	q := &ExtractionQuality{
		CharsPerPage:    30,
		HasImageStreams: true,
		PrintableRatio:  0.9,
	}
	if !q.NeedsOCR() {
		t.Error("expected NeedsOCR=true for low chars + images")
	}

	q = &ExtractionQuality{CharsPerPage: 1200, PrintableRatio: 0.99}
	if q.NeedsOCR() {
		t.Error("dense printable text does not need OCR")
	}
}

func TestMeasurePDF_WithoutContext(t *testing.T) {
	// WHAT: Metrics still compute when pdfcpu could not read the file.
	// WHY: The font-aware reader may succeed where validation fails.
	pages := []string{"first page text", "second"}
	q := measurePDF(nil, pages, joinPages(pages))
	if q.PageCount != 2 {
		t.Errorf("page count = %d, want 2", q.PageCount)
	}
	if q.CharsPerPage != float64(len("first page text")+len("second"))/2 {
		t.Errorf("chars per page = %f", q.CharsPerPage)
	}
	if q.HasImageStreams {
		t.Error("no context, no image detection")
	}
}
