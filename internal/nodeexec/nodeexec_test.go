package nodeexec

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/services"
)

type fakeFileStore struct {
	files map[uuid.UUID]*domain.UploadedFile
}

func (f fakeFileStore) Get(_ context.Context, id uuid.UUID) (*domain.UploadedFile, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, domainerr.NotFoundf("file %s not found", id)
	}
	return file, nil
}

type fakePDFExtractor struct {
	text string
	err  error
}

func (f fakePDFExtractor) ExtractText(_ string, _ int64) (string, error) {
	return f.text, f.err
}

type fakeLLM struct {
	out string
	err error
}

func (f fakeLLM) Complete(_ context.Context, _ services.LLMRequest) (string, error) {
	return f.out, f.err
}

func TestExtractTextExecutor_Success(t *testing.T) {
	id := uuid.New()
	svc := Services{
		Files: fakeFileStore{files: map[uuid.UUID]*domain.UploadedFile{
			id: {ID: id, MimeType: "application/pdf", SizeBytes: 100, Path: "/tmp/doc.pdf"},
		}},
		PDF: fakePDFExtractor{text: "extracted contents"},
	}
	exec := &ExtractTextExecutor{}
	out, err := exec.Execute(context.Background(), map[string]any{"file_id": id.String()}, "", svc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "extracted contents" {
		t.Fatalf("out = %q, want %q", out, "extracted contents")
	}
}

func TestExtractTextExecutor_RejectsNonPDF(t *testing.T) {
	id := uuid.New()
	svc := Services{
		Files: fakeFileStore{files: map[uuid.UUID]*domain.UploadedFile{
			id: {ID: id, MimeType: "text/plain", SizeBytes: 10},
		}},
	}
	exec := &ExtractTextExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{"file_id": id.String()}, "", svc)
	if domainerr.KindOf(err) != domainerr.Validation {
		t.Fatalf("kind = %v, want Validation", domainerr.KindOf(err))
	}
}

func TestExtractTextExecutor_RejectsOversizedFile(t *testing.T) {
	id := uuid.New()
	svc := Services{
		Files: fakeFileStore{files: map[uuid.UUID]*domain.UploadedFile{
			id: {ID: id, MimeType: "application/pdf", SizeBytes: maxExtractFileBytes + 1},
		}},
	}
	exec := &ExtractTextExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{"file_id": id.String()}, "", svc)
	if domainerr.KindOf(err) != domainerr.Validation {
		t.Fatalf("kind = %v, want Validation", domainerr.KindOf(err))
	}
}

func TestExtractTextExecutor_RejectsEmptyExtraction(t *testing.T) {
	id := uuid.New()
	svc := Services{
		Files: fakeFileStore{files: map[uuid.UUID]*domain.UploadedFile{
			id: {ID: id, MimeType: "application/pdf", SizeBytes: 10},
		}},
		PDF: fakePDFExtractor{text: "   "},
	}
	exec := &ExtractTextExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{"file_id": id.String()}, "", svc)
	if domainerr.KindOf(err) != domainerr.Validation {
		t.Fatalf("kind = %v, want Validation", domainerr.KindOf(err))
	}
}

func TestGenerativeAIExecutor_RendersPlaceholder(t *testing.T) {
	svc := Services{LLM: fakeLLM{out: "generated"}}
	exec := &GenerativeAIExecutor{}
	out, err := exec.Execute(context.Background(), map[string]any{
		"model":  "gpt-4.1-mini",
		"prompt": "summarize: {text}",
	}, "document body", svc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "generated" {
		t.Fatalf("out = %q", out)
	}
	if got := renderPrompt("summarize: {text}", "document body"); got != "summarize: document body" {
		t.Fatalf("renderPrompt = %q, want %q", got, "summarize: document body")
	}
}

func TestGenerativeAIExecutor_RejectsUnknownModel(t *testing.T) {
	svc := Services{LLM: fakeLLM{out: "generated"}}
	exec := &GenerativeAIExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{
		"model":  "not-a-real-model",
		"prompt": "hi",
	}, "", svc)
	if domainerr.KindOf(err) != domainerr.Validation {
		t.Fatalf("kind = %v, want Validation", domainerr.KindOf(err))
	}
}

func TestGenerativeAIExecutor_WrapsUpstreamFailure(t *testing.T) {
	svc := Services{LLM: fakeLLM{err: fmt.Errorf("rate limited")}}
	exec := &GenerativeAIExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{
		"model":  "gpt-4o",
		"prompt": "hi",
	}, "", svc)
	if domainerr.KindOf(err) != domainerr.UpstreamUnavailable {
		t.Fatalf("kind = %v, want UpstreamUnavailable", domainerr.KindOf(err))
	}
}

func TestRenderPrompt_AppendsInputWhenNoPlaceholder(t *testing.T) {
	got := renderPrompt("Summarize the following", "hello world")
	want := "Summarize the following\n\nhello world"
	if got != want {
		t.Fatalf("renderPrompt = %q, want %q", got, want)
	}
}

func TestFormatterExecutor_AppliesRulesInOrder(t *testing.T) {
	exec := &FormatterExecutor{}
	out, err := exec.Execute(context.Background(), map[string]any{
		"rules": []string{"uppercase", "lowercase"},
	}, "MiXeD Case", Services{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "mixed case" {
		t.Fatalf("out = %q, want %q", out, "mixed case")
	}
}

func TestFormatterExecutor_RejectsUnknownRule(t *testing.T) {
	exec := &FormatterExecutor{}
	_, err := exec.Execute(context.Background(), map[string]any{"rules": []string{"reverse"}}, "x", Services{})
	if domainerr.KindOf(err) != domainerr.Validation {
		t.Fatalf("kind = %v, want Validation", domainerr.KindOf(err))
	}
}

func TestValidateConfig_GenerativeAI(t *testing.T) {
	cases := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"model": "gpt-4o", "prompt": "hi"}, false},
		{"missing model", map[string]any{"prompt": "hi"}, true},
		{"unknown model", map[string]any{"model": "gpt-3", "prompt": "hi"}, true},
		{"missing prompt", map[string]any{"model": "gpt-4o"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(domain.NodeTypeGenerativeAI, tc.config)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateConfig error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_Agent(t *testing.T) {
	cases := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"objective": "summarize", "tools": []string{"llm_call"}}, false},
		{"missing objective", map[string]any{"tools": []string{"llm_call"}}, true},
		{"empty tools", map[string]any{"objective": "x", "tools": []string{}}, true},
		{"disallowed tool", map[string]any{"objective": "x", "tools": []string{"shell"}}, true},
		{"max_concurrent too high", map[string]any{"objective": "x", "tools": []string{"llm_call"}, "max_concurrent": 11}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(domain.NodeTypeAgent, tc.config)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateConfig error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegistry_DispatchUnknownNodeType(t *testing.T) {
	registry := NewRegistry(nil)
	_, err := registry.Dispatch(context.Background(), domain.NodeType("bogus"), nil, "", Services{})
	if err == nil {
		t.Fatal("expected an error for an unregistered node type")
	}
}
