// Package ocrsvc recognizes the text of scanned or photographed sheets with Tesseract.
// Building it requires the tesseract and leptonica development headers (cgo).
package ocrsvc

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/importer"
)

type TesseractRecognizer struct {
	PageSegMode gosseract.PageSegMode // NewTesseractRecognizer uses PSM_AUTO
}

var _ importer.Recognizer = (*TesseractRecognizer)(nil)

func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{PageSegMode: gosseract.PSM_AUTO}
}

type ocrResult struct {
	text string
	err  error
}

// Recognize runs one Tesseract client per call. Tesseract cannot be interrupted:
// when ctx ends first the call returns ctx.Err() and the client finishes in the background.
func (tr *TesseractRecognizer) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	done := make(chan ocrResult, 1)
	go func() {
		text, err := tr.recognize(image, lang)
		done <- ocrResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (tr *TesseractRecognizer) recognize(image []byte, lang string) (string, error) {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return "", errors.Wrap(err, "setting ocr language")
	}
	if err := client.SetPageSegMode(tr.PageSegMode); err != nil {
		return "", errors.Wrap(err, "setting page segmentation mode")
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", errors.Wrap(err, "loading image")
	}
	text, err := client.Text()
	if err != nil {
		return "", errors.Wrap(err, "recognizing text")
	}
	return text, nil
}
