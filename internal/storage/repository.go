package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"quickaccounting/internal/core"

	_ "modernc.org/sqlite"
)

const (
	insertTransaction = `
		INSERT INTO transactions (id, amount, type, category, description, date)
		VALUES (?, ?, ?, ?, ?, ?)`

	deleteTransaction = `DELETE FROM transactions WHERE id = ?`

	selectTransactions = `
		SELECT id, amount, type, category, description, date
		FROM transactions
		WHERE %s
		ORDER BY date DESC`
)

// periodConditions maps each period type to its WHERE clause. The clause is
// never built from user input.
var periodConditions = map[core.PeriodType]string{
	core.PeriodYear:  "strftime('%Y', date) = ?",
	core.PeriodMonth: "strftime('%Y-%m', date) = ?",
	core.PeriodDay:   "date = ?",
}

type SQLiteRepository struct {
	db  *sql.DB
	dsn string
}

// NewSQLiteRepository opens the database file at dbPath, creating it and its
// directory when missing, and initializes the schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// busy_timeout lets SQLite serialize concurrent writers instead of failing fast
	dsn := dbPath + "?_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db, dsn: dsn}
	if err := repo.Initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// Initialize ensures the transactions table exists. Safe to call repeatedly.
func (r *SQLiteRepository) Initialize() error {
	if err := RunMigrations(r.dsn); err != nil {
		return &core.StorageError{Op: "initialize schema", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Add stores t under a freshly generated ID and returns that ID. Amount, type
// and date are stored as given.
func (r *SQLiteRepository) Add(ctx context.Context, t core.NewTransaction) (string, error) {
	id := uuid.NewString()
	category := t.Category
	if category == "" {
		category = core.CategoryFromDescription(t.Description)
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertTransaction,
			id, t.Amount, string(t.Type), category, t.Description, t.Date)
		if err != nil {
			return &core.StorageError{Op: "insert transaction", Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"type", t.Type,
		"category", category,
		"amount", t.Amount,
		"date", t.Date)

	return id, nil
}

// Delete removes the transaction with the given ID. It returns core.ErrNotFound
// when no row matched.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteTransaction, id)
		if err != nil {
			return &core.StorageError{Op: "delete transaction", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &core.StorageError{Op: "delete transaction", Err: err}
		}
		if n == 0 {
			return fmt.Errorf("delete transaction %s: %w", id, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// QueryByPeriod returns the transactions of one year, month or day, newest
// first, together with their income and expense totals.
func (r *SQLiteRepository) QueryByPeriod(ctx context.Context, periodType core.PeriodType, period string) (core.Statistics, error) {
	cond, ok := periodConditions[periodType]
	if !ok {
		return core.Statistics{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriodType, string(periodType))
	}

	var txs []core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(selectTransactions, cond), period)
		if err != nil {
			return &core.StorageError{Op: "query transactions", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t    core.Transaction
				typ  string
				desc sql.NullString
			)
			if err := rows.Scan(&t.ID, &t.Amount, &typ, &t.Category, &desc, &t.Date); err != nil {
				return &core.StorageError{Op: "scan transaction", Err: err}
			}
			t.Type = core.TransactionType(typ)
			t.Description = desc.String
			txs = append(txs, t)
		}
		if err := rows.Err(); err != nil {
			return &core.StorageError{Op: "iterate transactions", Err: err}
		}
		return nil
	})
	if err != nil {
		return core.Statistics{}, err
	}

	slog.DebugContext(ctx, "Transactions queried",
		"period_type", periodType,
		"period", period,
		"count", len(txs))

	return core.NewStatistics(txs), nil
}

// withTx runs fn inside one transaction and always releases it. Errors from fn
// are returned unchanged so callers keep their classification.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin transaction", Err: err}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &core.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}
