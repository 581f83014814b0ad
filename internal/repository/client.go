package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

// ClientRepository is the read-only view the portal core has of clients.
// The client's business_id is the source of truth for scope checks.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
	// CurrentBusinessID resolves the client's owning business. Returns
	// empty string without error if the client does not exist.
	CurrentBusinessID(ctx context.Context, clientID string) (string, error)
	WithTx(tx *sqlx.Tx) ClientRepository
}

type clientRepo struct {
	db database.DBTX
}

func NewClientRepository(db *sqlx.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) WithTx(tx *sqlx.Tx) ClientRepository {
	return &clientRepo{db: tx}
}

func (r *clientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := r.db.GetContext(ctx, &client, `
		SELECT * FROM clients WHERE id = $1
	`, id)
	return HandleNotFound(&client, err)
}

func (r *clientRepo) CurrentBusinessID(ctx context.Context, clientID string) (string, error) {
	client, err := r.FindByID(ctx, clientID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return "", nil
	}
	return client.BusinessID, nil
}
