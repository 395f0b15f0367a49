package rest

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	domainerr "github.com/textforge/dagflow/internal/domain/errors"
	"github.com/textforge/dagflow/internal/domain/repository"
	"github.com/textforge/dagflow/internal/nodeexec"
	"github.com/textforge/dagflow/internal/scheduler"
	"github.com/textforge/dagflow/internal/services"
)

// pdfMagic is the fixed PDF header bytes (spec §6: "header must start
// with %PDF-"), checked against the uploaded bytes rather than trusting
// the client-supplied Content-Type header.
var pdfMagic = []byte("%PDF-")

const maxUploadBytes = 10 << 20 // 10 MiB, spec §4.2 extract_text cap

// Handlers implements the endpoint table of spec §6, grounded on the
// teacher's one-struct-per-resource WorkflowHandlers convention
// (handlers_workflows.go), collapsed to a single struct since the
// engine's resource set is small enough not to warrant a handler file
// per resource the way the teacher's much larger surface does.
type Handlers struct {
	Repo      repository.Repository
	Scheduler *scheduler.Scheduler
	FilesDir  string
}

// HandleCreateWorkflow handles POST /workflows.
func (h *Handlers) HandleCreateWorkflow(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" {
		respondError(c, NewAPIError("NAME_REQUIRED", "name is required", http.StatusBadRequest))
		return
	}

	wf := &domain.Workflow{Name: req.Name}
	if err := h.Repo.CreateWorkflow(c.Request.Context(), wf); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"id": wf.ID, "name": wf.Name})
}

// HandleGetWorkflow handles GET /workflows/{id}.
func (h *Handlers) HandleGetWorkflow(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}
	nodes, err := h.Repo.ListNodes(c.Request.Context(), wf.ID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"id": wf.ID, "name": wf.Name, "nodes": nodes})
}

// HandleCreateNode handles POST /workflows/{id}/nodes.
func (h *Handlers) HandleCreateNode(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}

	var req struct {
		NodeID string         `json:"node_id"`
		Type   string         `json:"node_type"`
		Config map[string]any `json:"config"`
	}
	if !bindJSON(c, &req) {
		return
	}

	nodeType := domain.NodeType(req.Type)
	if !nodeType.IsValid() {
		respondAPIError(c, domainerr.Validationf("unknown node_type %q", req.Type))
		return
	}
	if err := nodeexec.ValidateConfig(nodeType, req.Config); err != nil {
		respondAPIError(c, err)
		return
	}

	existing, err := h.Repo.ListNodes(c.Request.Context(), wf.ID)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	node := &domain.Node{
		WorkflowID: wf.ID,
		NodeID:     req.NodeID,
		Type:       nodeType,
		Config:     req.Config,
		OrderIndex: len(existing),
	}
	if err := h.Repo.CreateNode(c.Request.Context(), node); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"message": "node created", "node_id": node.NodeID})
}

// HandleCreateEdge handles POST /workflows/{id}/edges.
func (h *Handlers) HandleCreateEdge(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}

	var req struct {
		FromNodeID string `json:"from_node_id"`
		ToNodeID   string `json:"to_node_id"`
		FromPort   string `json:"from_port"`
		ToPort     string `json:"to_port"`
		Condition  string `json:"condition"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.FromNodeID == "" || req.ToNodeID == "" {
		respondError(c, NewAPIError("VALIDATION_FAILED", "from_node_id and to_node_id are required", http.StatusBadRequest))
		return
	}

	edge := &domain.Edge{
		WorkflowID: wf.ID,
		FromNodeID: req.FromNodeID,
		ToNodeID:   req.ToNodeID,
		FromPort:   req.FromPort,
		ToPort:     req.ToPort,
		Condition:  req.Condition,
	}
	if err := h.Repo.CreateEdge(c.Request.Context(), edge); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"message": "edge created", "edge_id": edge.ID})
}

// HandleListEdges handles GET /workflows/{id}/edges.
func (h *Handlers) HandleListEdges(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}
	edges, err := h.Repo.ListEdges(c.Request.Context(), wf.ID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"edges": edges})
}

// HandleRunWorkflow handles POST /workflows/{id}/run.
func (h *Handlers) HandleRunWorkflow(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}
	job, err := h.Scheduler.Submit(c.Request.Context(), wf.ID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, gin.H{"job_id": job.ID, "message": "job submitted"})
}

// HandleGetJob handles GET /jobs/{job_id}.
func (h *Handlers) HandleGetJob(c *gin.Context) {
	idParam, ok := getParam(c, "job_id")
	if !ok {
		return
	}
	jobID, err := uuid.Parse(idParam)
	if err != nil {
		respondError(c, ErrInvalidID)
		return
	}
	job, err := h.Repo.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, job)
}

// HandleListRuns handles GET /workflows/{id}/runs.
func (h *Handlers) HandleListRuns(c *gin.Context) {
	wf, ok := h.lookupWorkflow(c)
	if !ok {
		return
	}
	jobs, err := h.Repo.ListJobs(c.Request.Context(), wf.ID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"runs": jobs})
}

// HandleUploadFile handles POST /files (multipart), grounded on the
// teacher's filestorage component pattern: files are stored on local
// disk under a generated ID, narrowed here to the spec's PDF-only,
// read-only file store.
func (h *Handlers) HandleUploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, NewAPIError("FILE_REQUIRED", "multipart field \"file\" is required", http.StatusBadRequest))
		return
	}
	if fh.Size > maxUploadBytes {
		respondError(c, NewAPIError("FILE_TOO_LARGE", "file exceeds the 10 MiB limit", http.StatusBadRequest))
		return
	}
	mimeType := fh.Header.Get("Content-Type")
	if !strings.EqualFold(mimeType, "application/pdf") {
		respondError(c, NewAPIError("UNSUPPORTED_FILE_TYPE", "only application/pdf is accepted", http.StatusBadRequest))
		return
	}

	id := uuid.New()
	destPath := filepath.Join(h.FilesDir, id.String()+".pdf")
	if err := saveUpload(fh, destPath); err != nil {
		respondAPIError(c, domainerr.Wrap(domainerr.Internal, "failed to store uploaded file", err))
		return
	}

	if err := checkPDFMagic(destPath); err != nil {
		os.Remove(destPath)
		respondError(c, NewAPIError("UNSUPPORTED_FILE_TYPE", "file does not start with the PDF header", http.StatusBadRequest))
		return
	}
	if services.ProbeEncrypted(destPath) {
		os.Remove(destPath)
		respondError(c, NewAPIError("UNSUPPORTED_FILE_TYPE", "encrypted pdf files are not accepted", http.StatusBadRequest))
		return
	}

	file := &domain.UploadedFile{
		ID:        id,
		Filename:  fh.Filename,
		MimeType:  mimeType,
		SizeBytes: fh.Size,
		Path:      destPath,
	}
	if err := h.Repo.CreateFile(c.Request.Context(), file); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"file_id": file.ID, "filename": file.Filename, "message": "file uploaded"})
}

// HandleHealthz handles GET /healthz.
func (h *Handlers) HandleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handlers) lookupWorkflow(c *gin.Context) (*domain.Workflow, bool) {
	idParam, ok := getParam(c, "id")
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(idParam)
	if err != nil {
		respondError(c, ErrInvalidID)
		return nil, false
	}
	wf, err := h.Repo.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		respondAPIError(c, err)
		return nil, false
	}
	return wf, true
}

// checkPDFMagic reads the first bytes of the saved file and compares
// them against the fixed PDF header, so an arbitrary file uploaded
// with a spoofed Content-Type: application/pdf header is still rejected.
func checkPDFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open saved file: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("missing %%PDF- header")
	}
	return nil
}

func saveUpload(fh *multipart.FileHeader, destPath string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create dest: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	return nil
}
