package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salesportal/internal/domain"
	"salesportal/internal/store"
	"salesportal/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			store_id TEXT NOT NULL DEFAULT '',
			branch_label TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_entries (
			position BIGINT NOT NULL,
			barcode TEXT NOT NULL,
			classification TEXT NOT NULL,
			uploaded_by TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sales_summaries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			store_id TEXT NOT NULL,
			branch TEXT NOT NULL,
			period DATE NOT NULL,
			period_label TEXT NOT NULL,
			regular_qty DOUBLE PRECISION NOT NULL,
			regular_amt DOUBLE PRECISION NOT NULL,
			non_regular_qty DOUBLE PRECISION NOT NULL,
			non_regular_amt DOUBLE PRECISION NOT NULL,
			total_qty_sold DOUBLE PRECISION NOT NULL,
			total_amt DOUBLE PRECISION NOT NULL,
			cash_check DOUBLE PRECISION NOT NULL,
			charge DOUBLE PRECISION NOT NULL,
			gift_check DOUBLE PRECISION NOT NULL,
			credit_note DOUBLE PRECISION NOT NULL,
			total_payments DOUBLE PRECISION NOT NULL,
			amounts_match BOOLEAN NOT NULL,
			variance DOUBLE PRECISION NOT NULL,
			transaction_count INTEGER NOT NULL DEFAULT 0,
			head_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, store_id, branch, period)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_entries_position ON catalog_entries (position)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_summaries_period ON sales_summaries (period)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceCatalog deletes the whole catalog and inserts the new entries inside
// one transaction, so readers never observe a half-replaced catalog.
func (s *Store) ReplaceCatalog(ctx context.Context, entries []domain.CatalogEntry, uploadedBy string) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries`); err != nil {
		return 0, err
	}

	const chunkSize = 500
	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*4)
		for i, e := range chunk {
			base := i * 4
			placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
			args = append(args, start+i, e.Barcode, string(e.Classification), uploadedBy)
		}
		query := `INSERT INTO catalog_entries (position, barcode, classification, uploaded_by) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Store) ListCatalogEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT barcode, classification
		FROM catalog_entries
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0, 1024)
	for rows.Next() {
		var e domain.CatalogEntry
		var classification string
		if err := rows.Scan(&e.Barcode, &classification); err != nil {
			return nil, err
		}
		e.Classification = domain.Classification(classification)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListCatalogPage(ctx context.Context, offset, limit int) (*domain.CatalogPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT barcode, classification
		FROM catalog_entries
		ORDER BY position
		OFFSET $1 LIMIT $2
	`, offset, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &domain.CatalogPage{Offset: offset, Limit: limit, Entries: make([]domain.CatalogEntry, 0, limit)}
	for rows.Next() {
		var e domain.CatalogEntry
		var classification string
		if err := rows.Scan(&e.Barcode, &classification); err != nil {
			return nil, err
		}
		e.Classification = domain.Classification(classification)
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
		page.HasMore = true
	}
	return page, nil
}

func (s *Store) CountCatalogEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM catalog_entries`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const summaryColumns = `
	id, user_id, store_id, branch, period, period_label,
	regular_qty, regular_amt, non_regular_qty, non_regular_amt, total_qty_sold, total_amt,
	cash_check, charge, gift_check, credit_note, total_payments,
	amounts_match, variance, transaction_count, head_count,
	created_at, updated_at
`

func scanSummary(row interface{ Scan(dest ...any) error }) (*domain.SalesSummary, error) {
	var sum domain.SalesSummary
	err := row.Scan(
		&sum.ID, &sum.UserID, &sum.StoreID, &sum.Branch, &sum.Period, &sum.PeriodLabel,
		&sum.RegularQty, &sum.RegularAmt, &sum.NonRegularQty, &sum.NonRegularAmt, &sum.TotalQtySold, &sum.TotalAmt,
		&sum.CashCheck, &sum.Charge, &sum.GiftCheck, &sum.CreditNote, &sum.TotalPayments,
		&sum.AmountsMatch, &sum.Variance, &sum.TransactionCount, &sum.HeadCount,
		&sum.CreatedAt, &sum.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Store) UpsertSummary(ctx context.Context, summary domain.SalesSummary) (*domain.SalesSummary, error) {
	if summary.ID == "" {
		summary.ID = xid.New("sum")
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sales_summaries (
			id, user_id, store_id, branch, period, period_label,
			regular_qty, regular_amt, non_regular_qty, non_regular_amt, total_qty_sold, total_amt,
			cash_check, charge, gift_check, credit_note, total_payments,
			amounts_match, variance, transaction_count, head_count,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
		ON CONFLICT (user_id, store_id, branch, period) DO UPDATE SET
			period_label = EXCLUDED.period_label,
			regular_qty = EXCLUDED.regular_qty,
			regular_amt = EXCLUDED.regular_amt,
			non_regular_qty = EXCLUDED.non_regular_qty,
			non_regular_amt = EXCLUDED.non_regular_amt,
			total_qty_sold = EXCLUDED.total_qty_sold,
			total_amt = EXCLUDED.total_amt,
			cash_check = EXCLUDED.cash_check,
			charge = EXCLUDED.charge,
			gift_check = EXCLUDED.gift_check,
			credit_note = EXCLUDED.credit_note,
			total_payments = EXCLUDED.total_payments,
			amounts_match = EXCLUDED.amounts_match,
			variance = EXCLUDED.variance,
			transaction_count = EXCLUDED.transaction_count,
			head_count = EXCLUDED.head_count,
			updated_at = now()
		RETURNING `+summaryColumns,
		summary.ID, summary.UserID, summary.StoreID, summary.Branch, summary.Period, summary.PeriodLabel,
		summary.RegularQty, summary.RegularAmt, summary.NonRegularQty, summary.NonRegularAmt, summary.TotalQtySold, summary.TotalAmt,
		summary.CashCheck, summary.Charge, summary.GiftCheck, summary.CreditNote, summary.TotalPayments,
		summary.AmountsMatch, summary.Variance, summary.TransactionCount, summary.HeadCount,
	)
	return scanSummary(row)
}

func (s *Store) ListSummaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.SalesSummary, error) {
	conds := []string{"1=1"}
	args := []any{}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.StoreID != "" {
		add("store_id = $%d", filter.StoreID)
	}
	if filter.Branch != "" {
		add("lower(branch) = lower($%d)", filter.Branch)
	}
	if !filter.From.IsZero() {
		add("period >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("period <= $%d", filter.To)
	}

	query := `SELECT ` + summaryColumns + ` FROM sales_summaries WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY period, store_id, branch`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.SalesSummary, 0, 64)
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) GetSummaryByID(ctx context.Context, id string) (*domain.SalesSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM sales_summaries WHERE id = $1`, id)
	sum, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sum, nil
}

func (s *Store) DeleteSummary(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales_summaries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return store.ErrNotFound
	}
	if user.Role == "" {
		user.Role = "encoder"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, store_id, branch_label, active, created_at)
		VALUES ($1,$2,$3,$4,$5,true,now())
	`, username, user.PasswordHash, user.Role, user.StoreID, user.BranchLabel)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserExists
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, store_id, branch_label, active, created_at
		FROM users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&user.Username, &user.PasswordHash, &user.Role, &user.StoreID, &user.BranchLabel, &user.Active, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, store_id, branch_label, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.Role, &user.StoreID, &user.BranchLabel, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserBranch(ctx context.Context, username string, storeID string, branchLabel string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET store_id = $2, branch_label = $3 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), strings.TrimSpace(storeID), strings.TrimSpace(branchLabel))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
