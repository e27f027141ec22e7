package importer

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

const docxBody = "word/document.xml"

var errNoDocumentBody = errors.New("document has no " + docxBody)

// extractPDF reads the text of every page, row by row.
func extractPDF(data []byte) ([]RawRow, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "opening pdf")
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, errors.Wrapf(err, "reading page %d", i)
		}
		for _, row := range rows {
			lines = append(lines, joinWords(row.Content))
		}
	}
	return splitLines(joinLines(lines)), nil
}

// joinWords glues the text runs of one pdf row, adding a space where runs are visibly apart.
func joinWords(words pdf.TextHorizontal) string {
	var (
		b    strings.Builder
		prev *pdf.Text
	)
	for i := range words {
		w := &words[i]
		if prev != nil {
			gap := w.X - (prev.X + prev.W)
			if gap > 0.2*w.FontSize && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(w.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.S)
		prev = w
	}
	return b.String()
}

// extractDocx reads the paragraphs of a .docx body. Table rows come out as one line, cells space-separated.
func extractDocx(data []byte) ([]RawRow, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "opening docx")
	}
	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening "+docxBody)
		}
		defer func() { _ = rc.Close() }()

		text, err := docxText(rc)
		if err != nil {
			return nil, err
		}
		return splitLines(text), nil
	}
	return nil, errNoDocumentBody
}

func docxText(r io.Reader) (string, error) {
	var (
		b      strings.Builder
		inText bool
		inRow  int
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "parsing "+docxBody)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte(' ')
			case "br", "cr":
				if inRow == 0 {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			case "tr":
				inRow++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "tc":
				if inRow == 0 {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			case "tr":
				inRow--
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
