package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

// Recognizer is an OCR engine: it returns the text depicted in image, read in language lang.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
}

var errNoRecognizer = errors.New("no OCR engine configured")

// Extractor turns raw bytes into RawRows, one parser per Format.
type Extractor struct {
	recognizer Recognizer
	language   string
	logger     core.Logger
}

// NewExtractor returns an Extractor. recognizer may be nil, in which case images yield no rows.
func NewExtractor(recognizer Recognizer, language string, logger core.Logger) *Extractor {
	if language == "" {
		language = "eng"
	}
	return &Extractor{recognizer: recognizer, language: language, logger: logger}
}

// Extract parses data as format. Parse failures, panics included, are logged and yield no rows.
func (ex *Extractor) Extract(ctx context.Context, data []byte, format Format) (rows []RawRow) {
	defer func() {
		if r := recover(); r != nil {
			ex.logger.Error(fmt.Sprintf("extracting %s: panic: %v", format, r))
			rows = nil
		}
	}()

	var err error
	switch format {
	case FormatSpreadsheet:
		rows, err = extractSpreadsheet(data)
	case FormatCSV:
		rows, err = extractCSV(data)
	case FormatPDF:
		rows, err = extractPDF(data)
	case FormatDocument:
		rows, err = extractDocx(data)
	case FormatText:
		rows = splitLines(string(data))
	case FormatImage:
		rows, err = ex.extractImage(ctx, data)
	default:
		err = errUnsupportedFormat
	}

	if err != nil {
		ex.logger.Warning(fmt.Sprintf("extracting %s", format), "error", err.Error())
		return nil
	}
	return rows
}

func (ex *Extractor) extractImage(ctx context.Context, data []byte) ([]RawRow, error) {
	if ex.recognizer == nil {
		return nil, errNoRecognizer
	}
	img, err := prepareForOCR(data)
	if err != nil {
		return nil, err
	}
	text, err := ex.recognizer.Recognize(ctx, img, ex.language)
	if err != nil {
		return nil, errors.Wrap(err, "recognizing text")
	}
	return splitLines(text), nil
}

// splitLines turns free text into one RawRow per trimmed, non-empty line.
func splitLines(text string) []RawRow {
	var rows []RawRow
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line != "" {
			rows = append(rows, RawRow{Raw: line})
		}
	}
	return rows
}

// joinLines concatenates text lines, for extractors that produce text fragments.
func joinLines(lines []string) string {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}
