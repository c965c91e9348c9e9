package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that no asset exists for the token id.
	ErrNotFound = errors.New("registry: token not found")
	// ErrDuplicateToken signals a registration colliding with an existing token id.
	ErrDuplicateToken = errors.New("registry: token already registered")
)

// MetadataReader abstracts repository reads for the service.
type MetadataReader interface {
	GetByTokenID(ctx context.Context, tokenID string) (Metadata, error)
}

// PGRepository implements metadata access backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed registry repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByTokenID returns the stored metadata for a token.
func (r *PGRepository) GetByTokenID(ctx context.Context, tokenID string) (Metadata, error) {
	const query = `
		SELECT token_id, name, description, creator_address, asset_type, asset_hash, created_at
		FROM ip_assets
		WHERE token_id = $1
	`

	var md Metadata
	err := r.pool.QueryRow(ctx, query, tokenID).
		Scan(&md.TokenID, &md.Name, &md.Description, &md.Creator, &md.Type, &md.AssetHash, &md.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrNotFound
		}
		return Metadata{}, fmt.Errorf("registry: get token: %w", err)
	}
	return md, nil
}

// RegisterParams contains write parameters for recording an asset.
type RegisterParams struct {
	TokenID     string
	Name        string
	Description string
	Creator     string
	Type        string
	AssetHash   string
}

// Register records a newly minted asset so disputes can reference it.
func (r *PGRepository) Register(ctx context.Context, params RegisterParams) (Metadata, error) {
	const insertSQL = `
		INSERT INTO ip_assets (token_id, name, description, creator_address, asset_type, asset_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING token_id, name, description, creator_address, asset_type, asset_hash, created_at
	`

	var md Metadata
	err := r.pool.QueryRow(ctx, insertSQL,
		params.TokenID, params.Name, params.Description, params.Creator, params.Type, params.AssetHash).
		Scan(&md.TokenID, &md.Name, &md.Description, &md.Creator, &md.Type, &md.AssetHash, &md.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Metadata{}, ErrDuplicateToken
		}
		return Metadata{}, fmt.Errorf("registry: register token: %w", err)
	}
	return md, nil
}
