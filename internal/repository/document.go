package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

// DocumentRepository exposes the narrow slice of estimate/invoice state the
// portal core is allowed to touch.
type DocumentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Document, error)
	MarkEstimateAccepted(ctx context.Context, id string, at time.Time) error
	WithTx(tx *sqlx.Tx) DocumentRepository
}

type documentRepo struct {
	db database.DBTX
}

func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) WithTx(tx *sqlx.Tx) DocumentRepository {
	return &documentRepo{db: tx}
}

func (r *documentRepo) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.GetContext(ctx, &doc, `
		SELECT * FROM documents WHERE id = $1
	`, id)
	return HandleNotFound(&doc, err)
}

func (r *documentRepo) MarkEstimateAccepted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET
			estimate_status = 'accepted',
			estimate_accepted_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, at)
	return err
}
