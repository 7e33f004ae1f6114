package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/torikomi/internal/models"
)

// Tabular sources carry sheet and row counts alongside the text so document
// metadata can describe the table without re-parsing it.

var (
	odfTable    = regexp.MustCompile(`<table:table[\s>]`)
	odfTableRow = regexp.MustCompile(`<table:table-row[\s>]`)
)

// extractXLSX pulls cell text from every sheet, one row per line with cells
// tab-joined.
func extractXLSX(content []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	info := &models.TabularInfo{}
	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return Result{}, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		info.Sheets++
		info.Rows += len(rows)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return Result{Text: strings.TrimSpace(b.String()), Tabular: info}, nil
}

// extractODS extracts spreadsheet cell text the OpenDocument way and counts
// table and row elements for metadata.
func extractODS(content []byte) (Result, error) {
	contentXML, err := odfContent(content, "ODS")
	if err != nil {
		return Result{}, err
	}
	s := string(contentXML)
	var b strings.Builder
	appendMatches(&b, odfTextP.FindAllStringSubmatch(s, -1))
	appendMatches(&b, odfTextSpan.FindAllStringSubmatch(s, -1))
	info := &models.TabularInfo{
		Sheets: len(odfTable.FindAllString(s, -1)),
		Rows:   len(odfTableRow.FindAllString(s, -1)),
	}
	return Result{Text: strings.TrimSpace(b.String()), Tabular: info}, nil
}

// extractCSV parses comma-separated content, one row per line with fields
// tab-joined to match the other tabular formats.
func extractCSV(content []byte) (Result, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1 // real exports have ragged rows

	var b strings.Builder
	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("parse CSV: %w", err)
		}
		rows++
		b.WriteString(strings.Join(record, "\t"))
		b.WriteByte('\n')
	}
	info := &models.TabularInfo{Sheets: 1, Rows: rows}
	return Result{Text: strings.TrimSpace(b.String()), Tabular: info}, nil
}
