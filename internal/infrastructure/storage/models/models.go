package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// WorkflowModel is the workflows table row.
type WorkflowModel struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (w *WorkflowModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = time.Now()
		}
	}
	return nil
}

// NodeModel is the nodes table row. NodeID is the human slug;
// WorkflowID+NodeID is the addressing key the graph service and edges
// use, ID is the storage surrogate key (spec §3 / design note §9).
type NodeModel struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	WorkflowID uuid.UUID `bun:"workflow_id,notnull,type:uuid"`
	NodeID     string    `bun:"node_id,notnull"`
	Type       string    `bun:"type,notnull"`
	Config     JSONBMap  `bun:"config,type:jsonb,notnull,default:'{}'"`
	OrderIndex int       `bun:"order_index,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (n *NodeModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.Config == nil {
			n.Config = make(JSONBMap)
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
	}
	return nil
}

// EdgeModel is the edges table row.
type EdgeModel struct {
	bun.BaseModel `bun:"table:edges,alias:e"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	WorkflowID uuid.UUID `bun:"workflow_id,notnull,type:uuid"`
	FromNodeID string    `bun:"from_node_id,notnull"`
	ToNodeID   string    `bun:"to_node_id,notnull"`
	FromPort   string    `bun:"from_port,notnull,default:''"`
	ToPort     string    `bun:"to_port,notnull,default:''"`
	Condition  string    `bun:"condition,notnull,default:''"`
}

func (e *EdgeModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// JobModel is the jobs table row.
type JobModel struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid"`
	WorkflowID   uuid.UUID  `bun:"workflow_id,notnull,type:uuid"`
	Status       string     `bun:"status,notnull,default:'Pending'"`
	StartedAt    time.Time  `bun:"started_at,notnull,default:current_timestamp"`
	FinishedAt   *time.Time `bun:"finished_at"`
	FinalOutput  *string    `bun:"final_output"`
	ErrorMessage *string    `bun:"error_message"`
}

func (j *JobModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if j.StartedAt.IsZero() {
			j.StartedAt = time.Now()
		}
	}
	return nil
}

// JobStepModel is the job_steps table row. ConfigSnapshot freezes the
// node's config at dispatch time (spec §3 invariant 5).
type JobStepModel struct {
	bun.BaseModel `bun:"table:job_steps,alias:js"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	JobID          uuid.UUID  `bun:"job_id,notnull,type:uuid"`
	NodeID         string     `bun:"node_id,notnull"`
	NodeType       string     `bun:"node_type,notnull"`
	Status         string     `bun:"status,notnull,default:'Pending'"`
	StartedAt      time.Time  `bun:"started_at,notnull,default:current_timestamp"`
	FinishedAt     *time.Time `bun:"finished_at"`
	InputText      string     `bun:"input_text,notnull,default:''"`
	OutputText     string     `bun:"output_text,notnull,default:''"`
	ErrorMessage   string     `bun:"error_message,notnull,default:''"`
	ConfigSnapshot JSONBMap   `bun:"config_snapshot,type:jsonb,notnull,default:'{}'"`
}

func (s *JobStepModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.ConfigSnapshot == nil {
			s.ConfigSnapshot = make(JSONBMap)
		}
		if s.StartedAt.IsZero() {
			s.StartedAt = time.Now()
		}
	}
	return nil
}

// FileModel is the uploaded_files table row.
type FileModel struct {
	bun.BaseModel `bun:"table:uploaded_files,alias:f"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Filename  string    `bun:"filename,notnull"`
	MimeType  string    `bun:"mime_type,notnull"`
	SizeBytes int64     `bun:"size_bytes,notnull"`
	Path      string    `bun:"path,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (f *FileModel) BeforeAppendModel(_ context.Context, query schema.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now()
		}
	}
	return nil
}
