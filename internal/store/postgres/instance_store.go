package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// InstanceStore implements domain.InstanceStore using PostgreSQL.
type InstanceStore struct {
	pool *pgxpool.Pool
}

// NewInstanceStore creates a new InstanceStore backed by the given pool.
func NewInstanceStore(pool *pgxpool.Pool) *InstanceStore {
	return &InstanceStore{pool: pool}
}

// Create journals a newly deployed instance.
func (s *InstanceStore) Create(ctx context.Context, inst domain.Instance) error {
	const query = `
		INSERT INTO instances (
			address, kind, creator, salt, name, symbol, fingerprint, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		inst.Address.Hex(), int32(inst.Kind), inst.Creator.Hex(), int64(inst.Salt),
		inst.Name, inst.Symbol, inst.Fingerprint.Hex(), inst.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create instance %s: %w", inst.Address.Hex(), err)
	}
	return nil
}

const instanceSelectCols = `address, kind, creator, salt, name, symbol, fingerprint, created_at`

func scanInstance(scanner interface{ Scan(dest ...any) error }) (domain.Instance, error) {
	var inst domain.Instance
	var address, creator, fingerprint string
	var kind int32
	var salt int64

	err := scanner.Scan(&address, &kind, &creator, &salt,
		&inst.Name, &inst.Symbol, &fingerprint, &inst.CreatedAt)
	if err != nil {
		return domain.Instance{}, err
	}

	inst.Address = common.HexToAddress(address)
	inst.Kind = domain.Kind(kind)
	inst.Creator = common.HexToAddress(creator)
	inst.Salt = uint64(salt)
	inst.Fingerprint = common.HexToHash(fingerprint)
	return inst, nil
}

// GetByAddress returns one instance by its derived address.
func (s *InstanceStore) GetByAddress(ctx context.Context, addr common.Address) (domain.Instance, error) {
	query := `SELECT ` + instanceSelectCols + ` FROM instances WHERE address = $1`

	inst, err := scanInstance(s.pool.QueryRow(ctx, query, addr.Hex()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Instance{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Instance{}, fmt.Errorf("postgres: get instance %s: %w", addr.Hex(), err)
	}
	return inst, nil
}

// ListByCreator returns instances deployed by a given caller.
func (s *InstanceStore) ListByCreator(ctx context.Context, creator common.Address, opts domain.ListOpts) ([]domain.Instance, error) {
	query := `SELECT ` + instanceSelectCols + `
		FROM instances WHERE creator = $1
		ORDER BY created_at DESC` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query, creator.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list instances by creator: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

// List returns all instances, newest first.
func (s *InstanceStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Instance, error) {
	query := `SELECT ` + instanceSelectCols + `
		FROM instances ORDER BY created_at DESC` + limitOffset(opts)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list instances: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

// Count returns the number of journaled instances.
func (s *InstanceStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM instances`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count instances: %w", err)
	}
	return count, nil
}

func collectInstances(rows pgx.Rows) ([]domain.Instance, error) {
	var out []domain.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan instance: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: instance rows: %w", err)
	}
	return out, nil
}

// limitOffset renders pagination clauses. Values come from domain.ListOpts,
// never from raw user input.
func limitOffset(opts domain.ListOpts) string {
	clause := ""
	if opts.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return clause
}

var _ domain.InstanceStore = (*InstanceStore)(nil)
