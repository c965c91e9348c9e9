package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateID signals an insert that collided with an existing dispute id.
var ErrDuplicateID = errors.New("dispute: duplicate dispute id")

// PGRepository implements Store backed by PostgreSQL. The dispute row update
// and the audit entry inserts run in one transaction so status and history
// are never observed out of sync.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed dispute store.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, d Dispute) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin insert: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO disputes (id, creator_address, respondent_address, token_id, infringement_data,
			status, arbitration_method, arbitration_data, settlement_offer, resolution, frozen,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	method, arb, offer, resolution, err := marshalDocs(d)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, insertSQL,
		d.ID, d.CreatorAddress, d.RespondentAddress, d.TokenID, d.InfringementData,
		d.Status, method, arb, offer, resolution, d.Frozen,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("dispute: insert: %w", err)
	}

	if err := insertEntries(ctx, tx, d.ID, d.History); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit insert: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, d Dispute, appended []Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock keeps a concurrent writer from interleaving between the
	// update and the audit inserts.
	var exists string
	if err := tx.QueryRow(ctx, `SELECT id FROM disputes WHERE id = $1 FOR UPDATE`, d.ID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("dispute: lock row: %w", err)
	}

	method, arb, offer, resolution, err := marshalDocs(d)
	if err != nil {
		return err
	}

	const updateSQL = `
		UPDATE disputes
		SET status = $2,
		    arbitration_method = $3,
		    arbitration_data = $4,
		    settlement_offer = $5,
		    resolution = $6,
		    frozen = $7,
		    updated_at = $8
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateSQL,
		d.ID, d.Status, method, arb, offer, resolution, d.Frozen, d.UpdatedAt,
	); err != nil {
		return fmt.Errorf("dispute: update: %w", err)
	}

	if err := insertEntries(ctx, tx, d.ID, appended); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit update: %w", err)
	}
	return nil
}

// readSnapshot pins reads that span multiple queries to one snapshot, so a
// dispute row is never paired with history committed after it.
var readSnapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// querier is the read surface shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PGRepository) Get(ctx context.Context, id string) (Dispute, error) {
	tx, err := r.pool.BeginTx(ctx, readSnapshot)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin get: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		SELECT id, creator_address, respondent_address, token_id, infringement_data,
		       status, arbitration_method, arbitration_data, settlement_offer, resolution,
		       frozen, created_at, updated_at
		FROM disputes
		WHERE id = $1
	`

	d, err := scanDispute(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: get: %w", err)
	}

	history, err := historyFor(ctx, tx, id)
	if err != nil {
		return Dispute{}, err
	}
	d.History = history

	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit get: %w", err)
	}
	return d, nil
}

func (r *PGRepository) ListActive(ctx context.Context, addr string) ([]Dispute, error) {
	tx, err := r.pool.BeginTx(ctx, readSnapshot)
	if err != nil {
		return nil, fmt.Errorf("dispute: begin list active: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, creator_address, respondent_address, token_id, infringement_data,
		       status, arbitration_method, arbitration_data, settlement_offer, resolution,
		       frozen, created_at, updated_at
		FROM disputes
		WHERE status NOT IN ('resolved', 'rejected')
	`
	args := []any{}
	if addr != "" {
		query += ` AND (creator_address = $1 OR respondent_address = $1)`
		args = append(args, addr)
	}
	query += ` ORDER BY seq ASC`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: list active: %w", err)
	}
	defer rows.Close()

	out := make([]Dispute, 0, 8)
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan active: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate active: %w", err)
	}
	rows.Close()

	if err := attachHistory(ctx, tx, out); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispute: commit list active: %w", err)
	}
	return out, nil
}

func (r *PGRepository) History(ctx context.Context, id string) ([]Entry, error) {
	tx, err := r.pool.BeginTx(ctx, readSnapshot)
	if err != nil {
		return nil, fmt.Errorf("dispute: begin history: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM disputes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("dispute: history exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	out, err := historyFor(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispute: commit history: %w", err)
	}
	return out, nil
}

func historyFor(ctx context.Context, q querier, id string) ([]Entry, error) {
	const query = `
		SELECT entry_id, action, actor, details, created_at
		FROM dispute_events
		WHERE dispute_id = $1
		ORDER BY id ASC
	`
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("dispute: history: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("dispute: scan history: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate history: %w", err)
	}
	return out, nil
}

func attachHistory(ctx context.Context, q querier, disputes []Dispute) error {
	if len(disputes) == 0 {
		return nil
	}

	ids := make([]string, len(disputes))
	index := make(map[string]int, len(disputes))
	for i, d := range disputes {
		ids[i] = d.ID
		index[d.ID] = i
	}

	const query = `
		SELECT dispute_id, entry_id, action, actor, details, created_at
		FROM dispute_events
		WHERE dispute_id = ANY($1)
		ORDER BY id ASC
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("dispute: attach history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			disputeID string
			e         Entry
		)
		if err := rows.Scan(&disputeID, &e.ID, &e.Action, &e.Actor, &e.Details, &e.Timestamp); err != nil {
			return fmt.Errorf("dispute: scan attached history: %w", err)
		}
		if i, ok := index[disputeID]; ok {
			disputes[i].History = append(disputes[i].History, e)
		}
	}
	return rows.Err()
}

func insertEntries(ctx context.Context, tx pgx.Tx, disputeID string, entries []Entry) error {
	const insertSQL = `
		INSERT INTO dispute_events (dispute_id, entry_id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range entries {
		if _, err := tx.Exec(ctx, insertSQL, disputeID, e.ID, e.Action, e.Actor, e.Details, e.Timestamp); err != nil {
			return fmt.Errorf("dispute: insert audit entry: %w", err)
		}
	}
	return nil
}

// JSONB document shapes. The domain structs stay annotation-free; these fix
// the column encoding independently of any presentation layer.

type arbitrationDoc struct {
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type offerDoc struct {
	Proposer    string         `json:"proposer"`
	Terms       map[string]any `json:"terms"`
	ProposedAt  time.Time      `json:"proposed_at"`
	Status      string         `json:"status"`
	Responder   *string        `json:"responder,omitempty"`
	RespondedAt *time.Time     `json:"responded_at,omitempty"`
}

type resolutionDoc struct {
	Type       string    `json:"type"`
	Details    string    `json:"details"`
	Resolver   string    `json:"resolver"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func marshalDocs(d Dispute) (method *string, arb, offer, resolution []byte, err error) {
	if d.ArbitrationMethod != nil {
		s := string(*d.ArbitrationMethod)
		method = &s
	}
	if d.Arbitration != nil {
		arb, err = json.Marshal(arbitrationDoc{
			StartDate: d.Arbitration.StartDate,
			EndDate:   d.Arbitration.EndDate,
			Extra:     d.Arbitration.Extra,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("dispute: marshal arbitration: %w", err)
		}
	}
	if d.SettlementOffer != nil {
		offer, err = json.Marshal(offerDoc{
			Proposer:    d.SettlementOffer.Proposer,
			Terms:       d.SettlementOffer.Terms,
			ProposedAt:  d.SettlementOffer.ProposedAt,
			Status:      string(d.SettlementOffer.Status),
			Responder:   d.SettlementOffer.Responder,
			RespondedAt: d.SettlementOffer.RespondedAt,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("dispute: marshal offer: %w", err)
		}
	}
	if d.Resolution != nil {
		resolution, err = json.Marshal(resolutionDoc{
			Type:       d.Resolution.Type,
			Details:    d.Resolution.Details,
			Resolver:   d.Resolution.Resolver,
			ResolvedAt: d.Resolution.ResolvedAt,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("dispute: marshal resolution: %w", err)
		}
	}
	return method, arb, offer, resolution, nil
}

func scanDispute(row pgx.Row) (Dispute, error) {
	var (
		d          Dispute
		method     *string
		arb        []byte
		offer      []byte
		resolution []byte
	)
	if err := row.Scan(
		&d.ID, &d.CreatorAddress, &d.RespondentAddress, &d.TokenID, &d.InfringementData,
		&d.Status, &method, &arb, &offer, &resolution,
		&d.Frozen, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return Dispute{}, err
	}

	if method != nil {
		m := ArbitrationMethod(*method)
		d.ArbitrationMethod = &m
	}
	if len(arb) > 0 {
		var doc arbitrationDoc
		if err := json.Unmarshal(arb, &doc); err != nil {
			return Dispute{}, fmt.Errorf("dispute: unmarshal arbitration: %w", err)
		}
		d.Arbitration = &ArbitrationData{StartDate: doc.StartDate, EndDate: doc.EndDate, Extra: doc.Extra}
	}
	if len(offer) > 0 {
		var doc offerDoc
		if err := json.Unmarshal(offer, &doc); err != nil {
			return Dispute{}, fmt.Errorf("dispute: unmarshal offer: %w", err)
		}
		d.SettlementOffer = &SettlementOffer{
			Proposer:    doc.Proposer,
			Terms:       doc.Terms,
			ProposedAt:  doc.ProposedAt,
			Status:      OfferStatus(doc.Status),
			Responder:   doc.Responder,
			RespondedAt: doc.RespondedAt,
		}
	}
	if len(resolution) > 0 {
		var doc resolutionDoc
		if err := json.Unmarshal(resolution, &doc); err != nil {
			return Dispute{}, fmt.Errorf("dispute: unmarshal resolution: %w", err)
		}
		d.Resolution = &Resolution{Type: doc.Type, Details: doc.Details, Resolver: doc.Resolver, ResolvedAt: doc.ResolvedAt}
	}
	return d, nil
}
