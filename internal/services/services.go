// Package services defines the capability contracts the engine
// consumes but does not implement the internals of (spec §4.6): the
// LLM provider, the PDF text extractor, the file store, and a clock
// for deterministic timing in tests. Concrete implementations wire
// real third-party clients; the engine only depends on these
// interfaces.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
)

// LLMRequest is the capability contract for a single LLM call (spec
// §4.2): {model, prompt, temperature?, max_tokens?, top_p?}.
type LLMRequest struct {
	Model       string
	Prompt      string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// LLMClient calls an LLM provider. Implementations must enforce the
// 60s per-call timeout of spec §5 via ctx.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (string, error)
}

// FileStore resolves UploadedFile metadata by ID. Files are read-only
// after upload (spec §5); no locking is required.
type FileStore interface {
	Get(ctx context.Context, fileID uuid.UUID) (*domain.UploadedFile, error)
}

// PDFExtractor extracts plain text from a PDF file on disk, following
// the extract_text contract in spec §4.2: fails on missing file,
// non-PDF content, encryption, or size over 10 MiB. An empty result is
// returned without error; ExtractTextExecutor rejects it.
type PDFExtractor interface {
	ExtractText(path string, sizeBytes int64) (string, error)
}

// Clock abstracts time so executors and the coordinator can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
