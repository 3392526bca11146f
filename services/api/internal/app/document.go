package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const uploadsPrefix = "/uploads/"

var pdfMagic = []byte("%PDF-")

// documentKey names the stored object for a cohort upload.
func documentKey(cohortID int64, filename string) string {
	return fmt.Sprintf("cohort_%d_%s", cohortID, filename)
}

// DocumentPath is the public path a stored document is served under.
func DocumentPath(key string) string {
	return uploadsPrefix + key
}

func isPDFName(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// inspectPDF checks the header and parses the cross-reference table,
// returning the page count. The parser panics on some malformed input.
func inspectPDF(r io.ReaderAt, size int64) (pages int, err error) {
	if size < int64(len(pdfMagic)) {
		return 0, ErrNotPDF
	}
	head := make([]byte, len(pdfMagic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return 0, ErrNotPDF
	}
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, ErrNotPDF
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, ErrNotPDF
	}
	return reader.NumPage(), nil
}
