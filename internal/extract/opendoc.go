package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// OpenDocument files (odp, ods) are zips whose body lives in content.xml.
// Text runs sit in text:p, text:span, and text:h elements; separate opening
// and closing patterns keep matches balanced.

const odfContentPath = "content.xml"

var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// odfContent returns the content.xml bytes of an OpenDocument zip. kind names
// the format in error messages.
func odfContent(content []byte, kind string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	return data, nil
}

// extractODP extracts presentation text: paragraphs and spans first, then
// headings.
func extractODP(content []byte) (string, error) {
	contentXML, err := odfContent(content, "ODP")
	if err != nil {
		return "", err
	}
	s := string(contentXML)
	var b strings.Builder
	appendMatches(&b, odfTextP.FindAllStringSubmatch(s, -1))
	appendMatches(&b, odfTextSpan.FindAllStringSubmatch(s, -1))
	appendMatches(&b, odfTextH.FindAllStringSubmatch(s, -1))
	return strings.TrimSpace(b.String()), nil
}
