package importer

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

// Format is the encoding of an import source.
type Format string

const (
	FormatSpreadsheet Format = "spreadsheet"
	FormatCSV         Format = "csv"
	FormatPDF         Format = "pdf"
	FormatDocument    Format = "document"
	FormatText        Format = "text"
	FormatImage       Format = "image"
)

var (
	formatsByExt = map[string]Format{
		".xlsx": FormatSpreadsheet,
		".xlsm": FormatSpreadsheet,
		".xltx": FormatSpreadsheet,
		".csv":  FormatCSV,
		".pdf":  FormatPDF,
		".docx": FormatDocument,
		".txt":  FormatText,
		".png":  FormatImage,
		".jpg":  FormatImage,
		".jpeg": FormatImage,
		".gif":  FormatImage,
		".bmp":  FormatImage,
		".tif":  FormatImage,
		".tiff": FormatImage,
		".webp": FormatImage,
	}

	errUnsupportedFormat = errors.New("unsupported file format")
)

// SupportedExtensions lists every accepted file extension, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formatsByExt))
	for ext := range formatsByExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatFromExtension maps an extension (with or without the leading dot) to its Format.
func FormatFromExtension(ext string) (Format, bool) {
	ext = core.CleanString(ext, true /* lower */)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f, ok := formatsByExt[ext]
	return f, ok
}

// FormatFromFilename infers the Format of filename from its extension.
// Unsupported extensions yield a *core.ValidationError naming the supported list.
func FormatFromFilename(filename string) (Format, error) {
	ext := path.Ext(strings.ReplaceAll(filename, `\`, "/"))
	if f, ok := FormatFromExtension(ext); ok {
		return f, nil
	}
	return "", unsupportedFormatError(ext)
}

func unsupportedFormatError(ext string) error {
	if ext == "" {
		ext = "(none)"
	}
	msg := "unsupported file type " + ext + "; supported: " + strings.Join(SupportedExtensions(), ", ")
	return core.NewValidationError(errors.Wrap(errUnsupportedFormat, msg), core.FieldError{Field: "file", Error: msg})
}
