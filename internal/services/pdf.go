package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LedongthucPDFExtractor is the production PDFExtractor. The teacher
// has no PDF handling of its own; this is grounded on
// github.com/ledongthuc/pdf, the PDF library recurring most often
// across the retrieved example pack's go.mod files.
type LedongthucPDFExtractor struct{}

func (LedongthucPDFExtractor) ExtractText(path string, sizeBytes int64) (string, error) {
	if sizeBytes > maxPDFBytes {
		return "", fmt.Errorf("pdf: file exceeds %d bytes", maxPDFBytes)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		if isEncryptedErr(err) {
			return "", fmt.Errorf("pdf: file is encrypted")
		}
		return "", fmt.Errorf("pdf: open: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf: extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("pdf: read text: %w", err)
	}
	return buf.String(), nil
}

// ProbeEncrypted performs a cheap pdf.Open probe so an upload can be
// rejected for encryption (spec §6) immediately instead of only at
// extract_text time. A non-encryption open error is not treated as
// fatal here: full structural validation happens when extract_text
// actually runs, so this probe stays a cheap upload-time gate rather
// than a second copy of that validation.
func ProbeEncrypted(path string) bool {
	f, _, err := pdf.Open(path)
	if err != nil {
		return isEncryptedErr(err)
	}
	defer f.Close()
	return false
}

const maxPDFBytes = 10 * 1024 * 1024

func isEncryptedErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}
