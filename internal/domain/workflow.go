// Package domain holds the engine's core entities: Workflow, Node,
// Edge, Job, JobStep and UploadedFile, plus the invariants that bind
// them. It has no dependency on storage or transport — those are
// infrastructure concerns layered on top.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow owns a set of Nodes and Edges. It carries no execution
// state of its own; that lives on Job and JobStep.
type Workflow struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// NodeType enumerates the four node operations the engine can dispatch.
type NodeType string

const (
	NodeTypeExtractText  NodeType = "extract_text"
	NodeTypeGenerativeAI NodeType = "generative_ai"
	NodeTypeFormatter    NodeType = "formatter"
	NodeTypeAgent        NodeType = "agent"
)

// IsValid reports whether t is one of the four known node types.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeExtractText, NodeTypeGenerativeAI, NodeTypeFormatter, NodeTypeAgent:
		return true
	default:
		return false
	}
}

// Node is a typed transform within a Workflow. NodeID is the
// human-assigned slug used to address the node from edges and from
// the DAG; ID is the storage-layer surrogate key.
type Node struct {
	ID         uuid.UUID
	WorkflowID uuid.UUID
	NodeID     string
	Type       NodeType
	Config     map[string]any
	OrderIndex int
	CreatedAt  time.Time
}

// Edge is a directed dependency between two nodes of the same workflow.
// Condition is reserved and ignored by the engine (spec §3).
type Edge struct {
	ID         uuid.UUID
	WorkflowID uuid.UUID
	FromNodeID string
	ToNodeID   string
	FromPort   string
	ToPort     string
	Condition  string
}
