package storage

import (
	"github.com/textforge/dagflow/internal/domain"
	"github.com/textforge/dagflow/internal/infrastructure/storage/models"
)

func workflowToModel(w *domain.Workflow) *models.WorkflowModel {
	return &models.WorkflowModel{ID: w.ID, Name: w.Name, CreatedAt: w.CreatedAt}
}

func workflowFromModel(m *models.WorkflowModel) *domain.Workflow {
	return &domain.Workflow{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func nodeToModel(n *domain.Node) *models.NodeModel {
	return &models.NodeModel{
		ID:         n.ID,
		WorkflowID: n.WorkflowID,
		NodeID:     n.NodeID,
		Type:       string(n.Type),
		Config:     models.JSONBMap(n.Config),
		OrderIndex: n.OrderIndex,
		CreatedAt:  n.CreatedAt,
	}
}

func nodeFromModel(m *models.NodeModel) *domain.Node {
	return &domain.Node{
		ID:         m.ID,
		WorkflowID: m.WorkflowID,
		NodeID:     m.NodeID,
		Type:       domain.NodeType(m.Type),
		Config:     map[string]any(m.Config),
		OrderIndex: m.OrderIndex,
		CreatedAt:  m.CreatedAt,
	}
}

func edgeToModel(e *domain.Edge) *models.EdgeModel {
	return &models.EdgeModel{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		FromNodeID: e.FromNodeID,
		ToNodeID:   e.ToNodeID,
		FromPort:   e.FromPort,
		ToPort:     e.ToPort,
		Condition:  e.Condition,
	}
}

func edgeFromModel(m *models.EdgeModel) *domain.Edge {
	return &domain.Edge{
		ID:         m.ID,
		WorkflowID: m.WorkflowID,
		FromNodeID: m.FromNodeID,
		ToNodeID:   m.ToNodeID,
		FromPort:   m.FromPort,
		ToPort:     m.ToPort,
		Condition:  m.Condition,
	}
}

func jobToModel(j *domain.Job) *models.JobModel {
	return &models.JobModel{
		ID:           j.ID,
		WorkflowID:   j.WorkflowID,
		Status:       string(j.Status),
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		FinalOutput:  j.FinalOutput,
		ErrorMessage: j.ErrorMessage,
	}
}

func jobFromModel(m *models.JobModel) *domain.Job {
	return &domain.Job{
		ID:           m.ID,
		WorkflowID:   m.WorkflowID,
		Status:       domain.JobStatus(m.Status),
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		FinalOutput:  m.FinalOutput,
		ErrorMessage: m.ErrorMessage,
	}
}

func stepToModel(s *domain.JobStep) *models.JobStepModel {
	return &models.JobStepModel{
		ID:             s.ID,
		JobID:          s.JobID,
		NodeID:         s.NodeID,
		NodeType:       string(s.NodeType),
		Status:         string(s.Status),
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
		InputText:      s.InputText,
		OutputText:     s.OutputText,
		ErrorMessage:   s.ErrorMessage,
		ConfigSnapshot: models.JSONBMap(s.ConfigSnapshot),
	}
}

func stepFromModel(m *models.JobStepModel) *domain.JobStep {
	return &domain.JobStep{
		ID:             m.ID,
		JobID:          m.JobID,
		NodeID:         m.NodeID,
		NodeType:       domain.NodeType(m.NodeType),
		Status:         domain.StepStatus(m.Status),
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
		InputText:      m.InputText,
		OutputText:     m.OutputText,
		ErrorMessage:   m.ErrorMessage,
		ConfigSnapshot: map[string]any(m.ConfigSnapshot),
	}
}

func fileToModel(f *domain.UploadedFile) *models.FileModel {
	return &models.FileModel{
		ID:        f.ID,
		Filename:  f.Filename,
		MimeType:  f.MimeType,
		SizeBytes: f.SizeBytes,
		Path:      f.Path,
		CreatedAt: f.CreatedAt,
	}
}

func fileFromModel(m *models.FileModel) *domain.UploadedFile {
	return &domain.UploadedFile{
		ID:        m.ID,
		Filename:  m.Filename,
		MimeType:  m.MimeType,
		SizeBytes: m.SizeBytes,
		Path:      m.Path,
		CreatedAt: m.CreatedAt,
	}
}
