// Package postgres backs transport.ResponseStore with PostgreSQL via a
// pgx/v5 pool. Output items, errors, and metadata live in JSONB columns;
// listing uses keyset pagination on (created_at, id).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/storage"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// Store is the PostgreSQL-backed response store.
type Store struct {
	pool *pgxpool.Pool
}

var _ transport.ResponseStore = (*Store)(nil)

// New connects, verifies the connection, and optionally migrates the
// schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveResponse persists a completed response.
func (s *Store) SaveResponse(ctx context.Context, resp *api.Response) error {
	outputJSON, err := json.Marshal(resp.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	var errorJSON []byte
	if resp.Error != nil {
		errorJSON, err = json.Marshal(resp.Error)
		if err != nil {
			return fmt.Errorf("marshaling error: %w", err)
		}
	}

	var metadataJSON []byte
	if resp.Metadata != nil {
		metadataJSON, err = json.Marshal(resp.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	var usageIn, usageOut, usageTotal int
	if resp.Usage != nil {
		usageIn = resp.Usage.InputTokens
		usageOut = resp.Usage.OutputTokens
		usageTotal = resp.Usage.TotalTokens
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO responses (
			id, status, model, output,
			usage_input_tokens, usage_output_tokens, usage_total_tokens,
			error, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		resp.ID, string(resp.Status), resp.Model, outputJSON,
		usageIn, usageOut, usageTotal,
		nullJSON(errorJSON), nullJSON(metadataJSON), resp.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting response: %w", err)
	}

	return nil
}

// GetResponse retrieves a response by ID, excluding soft-deleted responses.
func (s *Store) GetResponse(ctx context.Context, id string) (*api.Response, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, model, output,
		       usage_input_tokens, usage_output_tokens, usage_total_tokens,
		       error, metadata, created_at
		FROM responses
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	resp, err := scanResponse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying response: %w", err)
	}
	return resp, nil
}

// DeleteResponse soft-deletes a response by setting deleted_at.
func (s *Store) DeleteResponse(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE responses SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting response: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// ListResponses returns a paginated list of stored responses ordered by
// created_at, optionally filtered by entity name. Cursor pagination is
// keyset-based on (created_at, id).
func (s *Store) ListResponses(ctx context.Context, opts transport.ListOptions) (*transport.ResponseList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"

	var conds []string
	var args []any
	conds = append(conds, "deleted_at IS NULL")

	if opts.Model != "" {
		args = append(args, opts.Model)
		conds = append(conds, fmt.Sprintf("model = $%d", len(args)))
	}

	cursorID := opts.After
	if cursorID == "" {
		cursorID = opts.Before
	}
	if cursorID != "" {
		cursorCreated, err := s.cursorCreatedAt(ctx, cursorID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &transport.ResponseList{Object: "list", Data: []*api.Response{}}, nil
			}
			return nil, err
		}

		// "after" continues in the list direction, "before" reverses it.
		op := "<"
		if asc == (opts.After != "") {
			op = ">"
		}
		args = append(args, cursorCreated, cursorID)
		conds = append(conds, fmt.Sprintf("(created_at, id) %s ($%d, $%d)", op, len(args)-1, len(args)))
	}

	dir := "DESC"
	if asc {
		dir = "ASC"
	}

	args = append(args, limit+1)
	query := fmt.Sprintf(`
		SELECT id, status, model, output,
		       usage_input_tokens, usage_output_tokens, usage_total_tokens,
		       error, metadata, created_at
		FROM responses
		WHERE %s
		ORDER BY created_at %s, id %s
		LIMIT $%d
	`, strings.Join(conds, " AND "), dir, dir, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	defer rows.Close()

	var matches []*api.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning response: %w", err)
		}
		matches = append(matches, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &transport.ResponseList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Response{}
	}

	return result, nil
}

// cursorCreatedAt resolves a cursor ID to its created_at for keyset pagination.
func (s *Store) cursorCreatedAt(ctx context.Context, id string) (int64, error) {
	var createdAt int64
	err := s.pool.QueryRow(ctx,
		"SELECT created_at FROM responses WHERE id = $1", id,
	).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolving cursor: %w", err)
	}
	return createdAt, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanResponse reads one responses row into an api.Response.
func scanResponse(row pgx.Row) (*api.Response, error) {
	var resp api.Response
	var status string
	var outputJSON []byte
	var errorJSON, metadataJSON *[]byte
	var usageIn, usageOut, usageTotal int

	err := row.Scan(
		&resp.ID, &status, &resp.Model, &outputJSON,
		&usageIn, &usageOut, &usageTotal,
		&errorJSON, &metadataJSON, &resp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	resp.Object = "response"
	resp.Status = api.ResponseStatus(status)

	if err := json.Unmarshal(outputJSON, &resp.Output); err != nil {
		return nil, fmt.Errorf("unmarshaling output: %w", err)
	}

	if usageIn != 0 || usageOut != 0 || usageTotal != 0 {
		resp.Usage = &api.Usage{
			InputTokens:  usageIn,
			OutputTokens: usageOut,
			TotalTokens:  usageTotal,
		}
	}

	if errorJSON != nil {
		var apiErr api.APIError
		if err := json.Unmarshal(*errorJSON, &apiErr); err == nil {
			resp.Error = &apiErr
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(*metadataJSON, &resp.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &resp, nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey matches the unique_violation error code.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
