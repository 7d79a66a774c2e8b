package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hisaab/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps read-modify-write updates serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, strings.ToLower(email))
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// Transactions

const transactionColumns = `id, owner, amount, kind, occurred_on, occurred_at, description, payment_method, created_at, updated_at`

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Owner, tx.Amount.String(), string(tx.Kind), tx.OccurredOn.String(), timeOfDayValue(tx.OccurredAt),
		tx.Description, string(tx.PaymentMethod),
		tx.CreatedAt.UTC().Format(timeLayout), tx.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"owner", tx.Owner,
		"kind", tx.Kind,
		"occurred_on", tx.OccurredOn.String())
	return nil
}

func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET amount = ?, kind = ?, occurred_on = ?, occurred_at = ?, description = ?, payment_method = ?, updated_at = ?
		  WHERE id = ?`,
		tx.Amount.String(), string(tx.Kind), tx.OccurredOn.String(), timeOfDayValue(tx.OccurredAt),
		tx.Description, string(tx.PaymentMethod), tx.UpdatedAt.UTC().Format(timeLayout), tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return txs[0], nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, f ListFilter) ([]core.Transaction, error) {
	var (
		where = []string{"owner = ?"}
		args  = []any{owner}
	)
	if !f.From.IsZero() {
		where = append(where, "occurred_on >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_on <= ?")
		args = append(args, f.To.String())
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Method != "" {
		method := f.Method
		if method == core.NotSpecified {
			method = ""
		}
		where = append(where, "payment_method = ?")
		args = append(args, method)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY occurred_on DESC, COALESCE(occurred_at, 0) DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	out := []core.Transaction{}
	for rows.Next() {
		var (
			tx                   core.Transaction
			amount, kind, on     string
			at                   sql.NullInt64
			method               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&tx.ID, &tx.Owner, &amount, &kind, &on, &at, &tx.Description, &method, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var err error
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: bad amount %q: %w", tx.ID, amount, err)
		}
		if tx.OccurredOn, err = core.ParseDate(on); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		if at.Valid {
			s := int(at.Int64)
			tx.OccurredAt = core.NewTimeOfDay(s/3600, (s%3600)/60, s%60)
		}
		tx.Kind = core.Kind(kind)
		tx.PaymentMethod = core.PaymentMethod(method)
		tx.CreatedAt = parseTime(createdAt)
		tx.UpdatedAt = parseTime(updatedAt)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Loan accounts

const loanColumns = `id, owner, account_type, name, initial_amount, amount_received, amount_paid, description, opened_on, created_at, updated_at`

func (r *SQLiteRepository) CreateLoan(ctx context.Context, a core.LoanAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loan_accounts (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Owner, string(a.Type), a.Name,
		a.InitialAmount.String(), a.AmountReceived.String(), a.AmountPaid.String(),
		a.Description, nullableDate(a.OpenedOn),
		a.CreatedAt.UTC().Format(timeLayout), a.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert loan account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateLoan(ctx context.Context, id string, fn func(*core.LoanAccount) error) (core.LoanAccount, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	rows, err := dbTx.QueryContext(ctx, `SELECT `+loanColumns+` FROM loan_accounts WHERE id = ?`, id)
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("load loan account: %w", err)
	}
	loans, err := scanLoans(rows)
	if err != nil {
		return core.LoanAccount{}, err
	}
	if len(loans) == 0 {
		return core.LoanAccount{}, ErrNotFound
	}

	a := loans[0]
	if err := fn(&a); err != nil {
		return core.LoanAccount{}, err
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE loan_accounts
		    SET account_type = ?, name = ?, initial_amount = ?, amount_received = ?, amount_paid = ?,
		        description = ?, opened_on = ?, updated_at = ?
		  WHERE id = ?`,
		string(a.Type), a.Name, a.InitialAmount.String(), a.AmountReceived.String(), a.AmountPaid.String(),
		a.Description, nullableDate(a.OpenedOn), a.UpdatedAt.UTC().Format(timeLayout), a.ID)
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("update loan account: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return core.LoanAccount{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) DeleteLoan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loan_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete loan account: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) GetLoan(ctx context.Context, id string) (core.LoanAccount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loan_accounts WHERE id = ?`, id)
	if err != nil {
		return core.LoanAccount{}, fmt.Errorf("get loan account: %w", err)
	}
	loans, err := scanLoans(rows)
	if err != nil {
		return core.LoanAccount{}, err
	}
	if len(loans) == 0 {
		return core.LoanAccount{}, ErrNotFound
	}
	return loans[0], nil
}

func (r *SQLiteRepository) ListLoans(ctx context.Context, owner string) ([]core.LoanAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loan_accounts WHERE owner = ? ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list loan accounts: %w", err)
	}
	return scanLoans(rows)
}

func scanLoans(rows *sql.Rows) ([]core.LoanAccount, error) {
	defer rows.Close()
	out := []core.LoanAccount{}
	for rows.Next() {
		var (
			a                       core.LoanAccount
			typ                     string
			initial, received, paid string
			openedOn                sql.NullString
			createdAt, updatedAt    string
		)
		if err := rows.Scan(&a.ID, &a.Owner, &typ, &a.Name, &initial, &received, &paid,
			&a.Description, &openedOn, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan loan account: %w", err)
		}
		amounts := []*decimal.Decimal{&a.InitialAmount, &a.AmountReceived, &a.AmountPaid}
		for i, raw := range []string{initial, received, paid} {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("loan account %s: bad amount %q: %w", a.ID, raw, err)
			}
			*amounts[i] = d
		}
		if openedOn.Valid && openedOn.String != "" {
			d, err := core.ParseDate(openedOn.String)
			if err != nil {
				return nil, fmt.Errorf("loan account %s: %w", a.ID, err)
			}
			a.OpenedOn = d
		}
		a.Type = core.AccountType(typ)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan accounts: %w", err)
	}
	return out, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func timeOfDayValue(t core.TimeOfDay) any {
	if !t.Valid() {
		return nil
	}
	return t.Seconds()
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
