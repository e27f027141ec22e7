package importer

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// scans narrower than this are upscaled before recognition
const minOCRWidth = 1200

// prepareForOCR grayscales, upscales and sharpens a photographed sheet and re-encodes it as PNG.
// Images imaging cannot decode (eg. webp) are passed through untouched.
func prepareForOCR(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, nil
	}

	if w := img.Bounds().Dx(); w > 0 && w < minOCRWidth {
		img = imaging.Resize(img, minOCRWidth, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 1)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "encoding ocr image")
	}
	return buf.Bytes(), nil
}
