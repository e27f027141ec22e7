package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	logsvc "github.com/trezcool/rollcall/services/logger"
)

type stubRecognizer struct {
	text string
	err  error

	gotImage []byte
	gotLang  string
}

func (s *stubRecognizer) Recognize(_ context.Context, image []byte, lang string) (string, error) {
	s.gotImage, s.gotLang = image, lang
	return s.text, s.err
}

func newTestExtractor(rec Recognizer, lang string) *Extractor {
	return NewExtractor(rec, lang, logsvc.NewDiscardLogger())
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(width, height, color.White), imaging.PNG))
	return buf.Bytes()
}

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxBody)
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_csv(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Name,Status\r\nJuan Dela Cruz,P\r\n")
	require.NoError(t, err)

	tests := []struct {
		name string
		data string
		want []RawRow
	}{
		{
			name: "utf-8 bom and semicolons",
			data: "\xef\xbb\xbfName;Status\nJuan Dela Cruz;P\n",
			want: []RawRow{cols("Name", "Juan Dela Cruz", "Status", "P")},
		},
		{
			name: "windows-1252",
			data: "Name\tCourse\nPe\xf1a, Jos\xe9\tBSIT\n",
			want: []RawRow{cols("Name", "Peña, José", "Course", "BSIT")},
		},
		{
			name: "utf-16 with bom",
			data: utf16,
			want: []RawRow{cols("Name", "Juan Dela Cruz", "Status", "P")},
		},
		{
			name: "blank lines and ragged rows",
			data: "\n\nFirst Name, Last Name,Remarks\n\n Juan ,Dela Cruz\n,,\nMaria,Santos,late,extra\n",
			want: []RawRow{
				cols("First Name", "Juan", "Last Name", "Dela Cruz", "Remarks", ""),
				cols("First Name", "Maria", "Last Name", "Santos", "Remarks", "late"),
			},
		},
		{
			name: "text past the last header",
			data: "Name,Status\nJuan Dela Cruz,present\n,,stray note\n",
			want: []RawRow{cols("Name", "Juan Dela Cruz", "Status", "present")},
		},
		{
			name: "quoted cells",
			data: "Name|Remarks\n\"Dela Cruz, Juan\"|\"said \"\"hi\"\"\"\n",
			want: []RawRow{cols("Name", "Dela Cruz, Juan", "Remarks", `said "hi"`)},
		},
		{
			name: "header only",
			data: "Name,Status\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := newTestExtractor(nil, "").Extract(context.Background(), []byte(tt.data), FormatCSV)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestExtract_spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Student No.", "First Name", "Last Name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2021-0001", "Juan", "Dela Cruz"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"2021-0002", "Maria"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows := newTestExtractor(nil, "").Extract(context.Background(), buf.Bytes(), FormatSpreadsheet)
	assert.Equal(t, []RawRow{
		cols("Student No.", "2021-0001", "First Name", "Juan", "Last Name", "Dela Cruz"),
		cols("Student No.", "2021-0002", "First Name", "Maria", "Last Name", ""),
	}, rows)
}

func TestExtract_document(t *testing.T) {
	body := `<w:p><w:r><w:t>ATTENDANCE SHEET</w:t></w:r></w:p>` +
		`<w:tbl><w:tr>` +
		`<w:tc><w:p><w:r><w:t>Juan Dela Cruz</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>Present</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl>` +
		`<w:p><w:r><w:t>Maria</w:t></w:r><w:r><w:tab/><w:t>Santos</w:t></w:r></w:p>` +
		`<w:p></w:p>`

	rows := newTestExtractor(nil, "").Extract(context.Background(), docxBytes(t, body), FormatDocument)
	assert.Equal(t, []RawRow{
		{Raw: "ATTENDANCE SHEET"},
		{Raw: "Juan Dela Cruz  Present"},
		{Raw: "Maria Santos"},
	}, rows)
}

func TestExtract_failures(t *testing.T) {
	ex := newTestExtractor(nil, "")
	ctx := context.Background()

	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{name: "corrupt workbook", data: []byte("PK nope"), format: FormatSpreadsheet},
		{name: "corrupt pdf", data: []byte("%PDF-1.4\n1 0 obj garbage"), format: FormatPDF},
		{name: "docx without body", data: func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			_, _ = zw.Create("word/styles.xml")
			_ = zw.Close()
			return buf.Bytes()
		}(), format: FormatDocument},
		{name: "not a zip", data: []byte("plain text"), format: FormatDocument},
		{name: "unknown format", data: []byte("x"), format: Format("odt")},
		{name: "image without recognizer", data: []byte("x"), format: FormatImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ex.Extract(ctx, tt.data, tt.format))
		})
	}
}

func TestExtract_text(t *testing.T) {
	rows := newTestExtractor(nil, "").Extract(context.Background(), []byte("\ufeff1. Juan Dela Cruz\r\n\n   \n  2. Maria Santos  \n"), FormatText)
	assert.Equal(t, []RawRow{{Raw: "1. Juan Dela Cruz"}, {Raw: "2. Maria Santos"}}, rows)
}

func TestExtract_image(t *testing.T) {
	ctx := context.Background()

	t.Run("recognized lines", func(t *testing.T) {
		rec := &stubRecognizer{text: "Juan Dela Cruz Present\n\nMaria Santos\n"}
		rows := newTestExtractor(rec, "eng+fil").Extract(ctx, pngBytes(t, 300, 100), FormatImage)

		assert.Equal(t, []RawRow{{Raw: "Juan Dela Cruz Present"}, {Raw: "Maria Santos"}}, rows)
		assert.Equal(t, "eng+fil", rec.gotLang)

		img, err := imaging.Decode(bytes.NewReader(rec.gotImage))
		require.NoError(t, err)
		assert.Equal(t, minOCRWidth, img.Bounds().Dx())
		assert.Equal(t, 400, img.Bounds().Dy())
	})

	t.Run("default language", func(t *testing.T) {
		rec := &stubRecognizer{text: "x"}
		newTestExtractor(rec, "").Extract(ctx, pngBytes(t, 10, 10), FormatImage)
		assert.Equal(t, "eng", rec.gotLang)
	})

	t.Run("recognizer failure", func(t *testing.T) {
		rec := &stubRecognizer{err: errors.New("tesseract crashed")}
		assert.Nil(t, newTestExtractor(rec, "").Extract(ctx, pngBytes(t, 10, 10), FormatImage))
	})
}

func TestPrepareForOCR(t *testing.T) {
	t.Run("wide images keep their size", func(t *testing.T) {
		out, err := prepareForOCR(pngBytes(t, 1600, 200))
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 1600, img.Bounds().Dx())
	})

	t.Run("undecodable bytes pass through", func(t *testing.T) {
		in := []byte("RIFF....WEBPVP8 ")
		out, err := prepareForOCR(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestSniffDelimiter(t *testing.T) {
	tests := map[string]rune{
		"a,b,c\n1;2;3;4;5": ',',
		"a;b;c":            ';',
		"a\tb\tc,d":        '\t',
		"a|b|c":            '|',
		"name":             ',',
	}
	for in, want := range tests {
		assert.Equal(t, want, sniffDelimiter([]byte(in)), "sniffDelimiter(%q)", in)
	}
}
