package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var errNoSheet = errors.New("workbook has no sheet")

// extractSpreadsheet reads the first sheet of a workbook.
func extractSpreadsheet(data []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheet
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheets[0])
	}
	return tableRows(records), nil
}

// extractCSV decodes data to UTF-8 (BOM-marked UTF-8/UTF-16, else Windows-1252 when not valid UTF-8)
// and reads it with the delimiter guessed from the first line.
func extractCSV(data []byte) ([]RawRow, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = sniffDelimiter(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv")
		}
		records = append(records, rec)
	}
	return tableRows(records), nil
}

func decodeText(data []byte) ([]byte, error) {
	if !utf8.Valid(data) && !hasUTF16BOM(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding windows-1252 text")
		}
		return decoded, nil
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding text")
	}
	return decoded, nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff})
}

func sniffDelimiter(data []byte) rune {
	line := string(data)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// tableRows keys every record after the header (the first non-blank record) by header text.
// Blank records, and records blank under every header, are dropped.
func tableRows(records [][]string) []RawRow {
	var (
		headers []string
		rows    []RawRow
	)
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(rec))
			for i, h := range rec {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}

		row := RawRow{Columns: make([]Column, 0, len(headers))}
		for i, h := range headers {
			var v string
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			row.Columns = append(row.Columns, Column{Header: h, Value: v})
		}
		if row.IsBlank() { // text only past the last header
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
