package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the monotone lifecycle of a Job: Pending -> Running ->
// {Succeeded, Failed}.
type JobStatus string

const (
	JobPending   JobStatus = "Pending"
	JobRunning   JobStatus = "Running"
	JobSucceeded JobStatus = "Succeeded"
	JobFailed    JobStatus = "Failed"
)

// IsTerminal reports whether s is Succeeded or Failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one execution attempt of a workflow.
type Job struct {
	ID           uuid.UUID
	WorkflowID   uuid.UUID
	Status       JobStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	FinalOutput  *string
	ErrorMessage *string
}

// StepStatus mirrors JobStatus for a single node's execution record.
type StepStatus string

const (
	StepPending   StepStatus = "Pending"
	StepRunning   StepStatus = "Running"
	StepSucceeded StepStatus = "Succeeded"
	StepFailed    StepStatus = "Failed"
)

// JobStep is one node's execution record within a Job.
type JobStep struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	NodeID         string
	NodeType       NodeType
	Status         StepStatus
	StartedAt      time.Time
	FinishedAt     *time.Time
	InputText      string
	OutputText     string
	ErrorMessage   string
	ConfigSnapshot map[string]any
}
