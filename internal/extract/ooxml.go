package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// OOXML packages (docx, pptx) are zips of XML parts. Word text lives in
// <w:t> runs and presentation text in <a:t> runs; matching the runs directly
// keeps extraction working regardless of paragraph and run attributes.

const (
	// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
	contentTypesPath = "[Content_Types].xml"
	// docxDocumentPath is the conventional main document part of a .docx zip.
	docxDocumentPath = "word/document.xml"
	// docxMainType is the content type of the main document in DOCX files.
	docxMainType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	// pptxSlidePrefix is the path prefix of slide parts inside a .pptx zip.
	pptxSlidePrefix = "ppt/slides/slide"
)

var (
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	// Override elements in [Content_Types].xml, both attribute orders.
	docxPartFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"`)
	docxTypeFirst = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX pulls every <w:t> text run from the main document part. The
// part path comes from [Content_Types].xml when present, falling back to
// word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docPath := docxMainPart(zr)
	if docPath == "" {
		docPath = docxDocumentPath
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	var b strings.Builder
	appendMatches(&b, wtTag.FindAllStringSubmatch(string(docXML), -1))
	return strings.TrimSpace(b.String()), nil
}

// docxMainPart resolves the main document part from [Content_Types].xml.
// Returns "" when the package carries no usable override.
func docxMainPart(zr *zip.Reader) string {
	data, err := readZipEntry(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	s := string(data)
	if m := docxPartFirst.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := docxTypeFirst.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// extractPPTX pulls <a:t> text runs from every slide part, in zip order.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	var b strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		appendMatches(&b, atTag.FindAllStringSubmatch(string(data), -1))
	}
	return strings.TrimSpace(b.String()), nil
}
