package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/textforge/dagflow/internal/infrastructure/storage/models"
)

// Migrate creates the engine's tables if they do not already exist.
// The teacher drives schema setup from a migrate.Migrator reading SQL
// files off an embedded fs.FS; this engine has no migrations
// directory asset to discover, so table creation is expressed
// directly against the bun models instead.
func Migrate(ctx context.Context, db *bun.DB) error {
	modelsInOrder := []interface{}{
		(*models.WorkflowModel)(nil),
		(*models.NodeModel)(nil),
		(*models.EdgeModel)(nil),
		(*models.JobModel)(nil),
		(*models.JobStepModel)(nil),
		(*models.FileModel)(nil),
	}
	for _, m := range modelsInOrder {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}
