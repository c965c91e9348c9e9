package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPartyNotFound signals that no account exists for the address.
	ErrPartyNotFound = errors.New("auth: party not found")
	// ErrDuplicateAddress signals that the address is already registered.
	ErrDuplicateAddress = errors.New("auth: address already registered")
)

// Repository handles data access for authentication.
type Repository interface {
	CreateParty(ctx context.Context, params CreatePartyParams) (Party, error)
	GetPartyByAddress(ctx context.Context, address string) (Party, error)
}

// CreatePartyParams contains write parameters for creating accounts.
type CreatePartyParams struct {
	Address      string
	DisplayName  string
	PasswordHash string
	Role         Role
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateParty inserts a new account with a hashed password.
func (r *PGRepository) CreateParty(ctx context.Context, params CreatePartyParams) (Party, error) {
	const insertSQL = `
		INSERT INTO parties (address, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, address, display_name, password_hash, role, created_at, updated_at
	`

	party, err := scanParty(r.pool.QueryRow(ctx, insertSQL, params.Address, params.DisplayName, params.PasswordHash, params.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Party{}, ErrDuplicateAddress
		}
		return Party{}, fmt.Errorf("auth: create party: %w", err)
	}
	return party, nil
}

// GetPartyByAddress fetches an account by wallet address.
func (r *PGRepository) GetPartyByAddress(ctx context.Context, address string) (Party, error) {
	const query = `
		SELECT id, address, display_name, password_hash, role, created_at, updated_at
		FROM parties
		WHERE address = $1
	`

	party, err := scanParty(r.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, fmt.Errorf("auth: get party by address: %w", err)
	}
	return party, nil
}

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Address, &p.DisplayName, &p.PasswordHash, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Party{}, err
	}
	return p, nil
}
