package nodeexec

import (
	"context"
	"strings"

	"github.com/google/uuid"

	domainerr "github.com/textforge/dagflow/internal/domain/errors"
)

const maxExtractFileBytes = 10 * 1024 * 1024 // 10 MiB, spec §4.2

// ExtractTextExecutor resolves config.file_id against the FileStore
// and extracts plain text from the referenced PDF via a PDFExtractor.
// Grounded on the teacher's node-executor shape
// (internal/application/executor/node_executors.go); the teacher has
// no PDF handling of its own — the PDF concern is grounded on the
// ledongthuc/pdf usage recurring across the example pack.
type ExtractTextExecutor struct{}

func (e *ExtractTextExecutor) Execute(ctx context.Context, config map[string]any, _ string, svc Services) (string, error) {
	cfg, err := parseConfig[ExtractTextConfig](config)
	if err != nil {
		return "", domainerr.Validationf("extract_text: %v", err)
	}
	if cfg.FileID == "" {
		return "", domainerr.Validationf("extract_text: file_id is required")
	}
	fileID, err := uuid.Parse(cfg.FileID)
	if err != nil {
		return "", domainerr.Validationf("extract_text: file_id is not a valid UUID")
	}

	file, err := svc.Files.Get(ctx, fileID)
	if err != nil {
		return "", domainerr.NotFoundf("extract_text: file %s not found", cfg.FileID)
	}
	if !strings.EqualFold(file.MimeType, "application/pdf") {
		return "", domainerr.Validationf("extract_text: file %s is not a PDF (mime type %q)", cfg.FileID, file.MimeType)
	}
	if file.SizeBytes > maxExtractFileBytes {
		return "", domainerr.Validationf("extract_text: file %s exceeds the 10 MiB limit", cfg.FileID)
	}

	text, err := svc.PDF.ExtractText(file.Path, file.SizeBytes)
	if err != nil {
		return "", domainerr.Internalf("extract_text: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domainerr.Validationf("extract_text: no extractable text in file %s", cfg.FileID)
	}
	return text, nil
}
