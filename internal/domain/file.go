package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadedFile references an externally stored blob. The engine treats
// files as read-only; it never mutates or deletes them.
type UploadedFile struct {
	ID        uuid.UUID
	Filename  string
	MimeType  string
	SizeBytes int64
	Path      string
	CreatedAt time.Time
}
