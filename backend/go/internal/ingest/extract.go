package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unioffice/v2/common/license"
	"github.com/unidoc/unioffice/v2/document"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedType is returned when no extractor handles the detected
// MIME type.
var ErrUnsupportedType = errors.New("unsupported file type")

// SetUnidocLicense installs the unioffice metered license key used for DOCX
// extraction. A missing key leaves unioffice in unlicensed evaluation mode.
func SetUnidocLicense(key string) error {
	if key == "" {
		return nil
	}
	return license.SetMeteredKey(key)
}

// ExtractText detects the MIME type of an uploaded file from its content and
// extracts plain text from it. It returns the text and the detected MIME
// type. Detection never consults the file name.
func ExtractText(data []byte) (string, string, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("application/pdf"):
		text, err := extractPDF(data)
		return text, mtype.String(), err
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		text, err := extractDocx(data)
		return text, mtype.String(), err
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		text, err := extractXlsx(data)
		return text, mtype.String(), err
	case mtype.Is("text/html"):
		text, err := extractHTML(data)
		return text, mtype.String(), err
	case isTextual(mtype):
		return string(data), mtype.String(), nil
	default:
		return "", mtype.String(), fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}
}

// isTextual walks the MIME hierarchy looking for text/plain, which covers
// markdown, csv, json and other text formats in one check.
func isTextual(mtype *mimetype.MIME) bool {
	for ; mtype != nil; mtype = mtype.Parent() {
		if mtype.Is("text/plain") {
			return true
		}
	}
	return false
}

// extractPDF concatenates the text of every readable page. Pages that fail
// to decode are skipped rather than failing the whole file.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// extractDocx collects the text of all paragraphs, then renders table rows
// with cells joined by " | " so tabular policy content stays searchable.
func extractDocx(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		sb.WriteString("\n")
	}

	for _, tbl := range doc.Tables() {
		for _, row := range tbl.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				var cellText strings.Builder
				for _, p := range cell.Paragraphs() {
					for _, r := range p.Runs() {
						cellText.WriteString(r.Text())
					}
				}
				cells = append(cells, cellText.String())
			}
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// extractXlsx renders each sheet as a Markdown table under a heading named
// after the sheet.
func extractXlsx(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		sb.WriteString("## " + sheetName + "\n\n")
		sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		for _, row := range rows[1:] {
			sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// extractHTML converts the page to Markdown, which drops scripts and styling
// while keeping headings, lists and links readable.
func extractHTML(data []byte) (string, error) {
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return md, nil
}
