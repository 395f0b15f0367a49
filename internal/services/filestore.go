package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/textforge/dagflow/internal/domain"
	"github.com/textforge/dagflow/internal/domain/repository"
)

// RepositoryFileStore adapts a FileRepository to the FileStore
// capability the node executors depend on.
type RepositoryFileStore struct {
	Files repository.FileRepository
}

func (s RepositoryFileStore) Get(ctx context.Context, fileID uuid.UUID) (*domain.UploadedFile, error) {
	return s.Files.GetFile(ctx, fileID)
}
