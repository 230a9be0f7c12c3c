package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"portfolios", "client_state"} {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) ListPortfolios(ctx context.Context) ([]portfolio.Record, error) {
	const query = `
		SELECT id, name, tickers, created_at, updated_at
		FROM portfolios
		ORDER BY created_at ASC, id ASC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []portfolio.Record{}
	for rows.Next() {
		record, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) GetPortfolio(ctx context.Context, id string) (*portfolio.Record, error) {
	const query = `
		SELECT id, name, tickers, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	record, err := scanPortfolio(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (p *PostgresStore) CreatePortfolio(ctx context.Context, record portfolio.Record) error {
	tickers, err := json.Marshal(record.Tickers)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO portfolios (id, name, tickers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Name,
		tickers,
		parseTimestampValue(record.CreatedAt),
		parseTimestampValue(defaultIfEmpty(record.UpdatedAt, record.CreatedAt)),
	)
	return err
}

func (p *PostgresStore) UpdatePortfolio(ctx context.Context, record portfolio.Record) error {
	tickers, err := json.Marshal(record.Tickers)
	if err != nil {
		return err
	}
	const query = `
		UPDATE portfolios
		SET name = $2, tickers = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := p.db.ExecContext(ctx, query, record.ID, record.Name, tickers, parseTimestampValue(record.UpdatedAt))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (p *PostgresStore) DeletePortfolio(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (p *PostgresStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := p.db.QueryRowContext(ctx, "SELECT value FROM client_state WHERE key = $1", key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (p *PostgresStore) PutState(ctx context.Context, key string, value string) error {
	const query = `
		INSERT INTO client_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

func (p *PostgresStore) DeleteState(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM client_state WHERE key = $1", key)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (portfolio.Record, error) {
	var record portfolio.Record
	var tickers []byte
	var createdAt time.Time
	var updatedAt time.Time
	if err := row.Scan(&record.ID, &record.Name, &tickers, &createdAt, &updatedAt); err != nil {
		return portfolio.Record{}, err
	}
	record.Tickers = []portfolio.Ticker{}
	if len(tickers) > 0 {
		if err := json.Unmarshal(tickers, &record.Tickers); err != nil {
			return portfolio.Record{}, fmt.Errorf("decode tickers for %s: %w", record.ID, err)
		}
	}
	record.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	record.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return record, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
