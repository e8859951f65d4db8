package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"report-approval-workflow/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle, e.g. a sqlmock connection.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return err
}

func (t *pgTx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := t.tx.QueryRowContext(ctx, `
		INSERT INTO users (name, approval_level)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, u.Name, u.ApprovalLevel)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (t *pgTx) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, approval_level, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err := row.Scan(&u.ID, &u.Name, &u.ApprovalLevel, &u.CreatedAt); err != nil {
		return domain.User{}, notFound(err, "user", userID)
	}
	return u, nil
}

// DeleteUser relies on approvals.reviewed_by ON DELETE SET NULL.
func (t *pgTx) DeleteUser(ctx context.Context, userID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return requireAffected(res, "user", userID)
}

func (t *pgTx) CreateReport(ctx context.Context, r domain.Report) (domain.Report, error) {
	row := t.tx.QueryRowContext(ctx, `
		INSERT INTO reports (title, status, required_levels)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, r.Title, int(r.Status), pq.Array(toInt64s(r.RequiredLevels)))
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.Report{}, err
	}
	return r, nil
}

func (t *pgTx) GetReport(ctx context.Context, reportID int64) (domain.Report, error) {
	return t.scanReport(ctx, `
		SELECT id, title, status, required_levels, created_at, updated_at
		FROM reports
		WHERE id = $1
	`, reportID)
}

func (t *pgTx) LockReport(ctx context.Context, reportID int64) (domain.Report, error) {
	return t.scanReport(ctx, `
		SELECT id, title, status, required_levels, created_at, updated_at
		FROM reports
		WHERE id = $1
		FOR UPDATE
	`, reportID)
}

func (t *pgTx) scanReport(ctx context.Context, query string, reportID int64) (domain.Report, error) {
	var r domain.Report
	var status int
	var levels []int64
	row := t.tx.QueryRowContext(ctx, query, reportID)
	if err := row.Scan(&r.ID, &r.Title, &status, pq.Array(&levels), &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.Report{}, notFound(err, "report", reportID)
	}
	parsed, err := domain.ParseReportStatus(status)
	if err != nil {
		return domain.Report{}, err
	}
	r.Status = parsed
	r.RequiredLevels = fromInt64s(levels)
	return r, nil
}

func (t *pgTx) UpdateReportStatus(ctx context.Context, reportID int64, status domain.ReportStatus) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE reports
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, reportID, int(status))
	if err != nil {
		return err
	}
	return requireAffected(res, "report", reportID)
}

// DeleteReport relies on approvals.report_id ON DELETE CASCADE.
func (t *pgTx) DeleteReport(ctx context.Context, reportID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return err
	}
	return requireAffected(res, "report", reportID)
}

const approvalColumns = `id, report_id, reviewed_by, level, status, notes, created_at, updated_at`

func (t *pgTx) CreateApproval(ctx context.Context, a domain.Approval) (domain.Approval, error) {
	row := t.tx.QueryRowContext(ctx, `
		INSERT INTO approvals (report_id, level, status)
		VALUES ($1, $2, $3)
		RETURNING `+approvalColumns, a.ReportID, a.Level, int(a.Status))
	return scanApproval(row)
}

func (t *pgTx) GetApproval(ctx context.Context, approvalID int64) (domain.Approval, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, approvalID)
	a, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, notFound(err, "approval", approvalID)
	}
	return a, nil
}

func (t *pgTx) LockApproval(ctx context.Context, approvalID int64) (domain.Approval, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1 FOR UPDATE`, approvalID)
	a, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, notFound(err, "approval", approvalID)
	}
	return a, nil
}

func (t *pgTx) FindApprovalByLevel(ctx context.Context, reportID int64, level int) (domain.Approval, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+approvalColumns+`
		FROM approvals
		WHERE report_id = $1 AND level = $2
		ORDER BY id ASC
		LIMIT 1
	`, reportID, level)
	a, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, notFound(err, "approval level", level)
	}
	return a, nil
}

func (t *pgTx) ListApprovals(ctx context.Context, reportID int64) ([]domain.Approval, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+approvalColumns+`
		FROM approvals
		WHERE report_id = $1
		ORDER BY level ASC, id ASC
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Approval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *pgTx) UpdateApprovalDecision(ctx context.Context, a domain.Approval) (domain.Approval, error) {
	var reviewedBy sql.NullInt64
	if a.ReviewedBy != nil {
		reviewedBy = sql.NullInt64{Int64: *a.ReviewedBy, Valid: true}
	}
	var notes sql.NullString
	if a.Notes != nil {
		notes = sql.NullString{String: *a.Notes, Valid: true}
	}
	row := t.tx.QueryRowContext(ctx, `
		UPDATE approvals
		SET status = $2, reviewed_by = $3, notes = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+approvalColumns, a.ID, int(a.Status), reviewedBy, notes)
	updated, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, notFound(err, "approval", a.ID)
	}
	return updated, nil
}

func (t *pgTx) InsertAudit(ctx context.Context, reportID int64, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO report_audit (report_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, reportID, state, string(payload))
	return err
}

func (t *pgTx) ListAudit(ctx context.Context, reportID int64) ([]domain.AuditEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT report_id, state, detail, created_at
		FROM report_audit
		WHERE report_id = $1
		ORDER BY id ASC
	`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var detail []byte
		if err := rows.Scan(&e.ReportID, &e.State, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = detail
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (domain.Approval, error) {
	var a domain.Approval
	var reviewedBy sql.NullInt64
	var notes sql.NullString
	var status int
	if err := row.Scan(&a.ID, &a.ReportID, &reviewedBy, &a.Level, &status, &notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Approval{}, err
	}
	parsed, err := domain.ParseApprovalStatus(status)
	if err != nil {
		return domain.Approval{}, err
	}
	a.Status = parsed
	if reviewedBy.Valid {
		v := reviewedBy.Int64
		a.ReviewedBy = &v
	}
	if notes.Valid {
		v := notes.String
		a.Notes = &v
	}
	return a, nil
}

func auditPayload(detail any) ([]byte, error) {
	switch v := detail.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
