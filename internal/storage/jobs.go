package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/jobs"
)

var _ jobs.Store = (*SQLiteStore)(nil)

const jobColumns = `id, method, destination, template, options, status, record_count, total_cents,
	artifact, share_token, expires_at, view_count, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (jobs.Job, error) {
	var (
		j                    jobs.Job
		method, status, opts string
		totalCents           int64
		shareToken           sql.NullString
		expiresAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&j.ID, &method, &j.Destination, &j.Template, &opts, &status,
		&j.RecordCount, &totalCents, &j.Artifact, &shareToken, &expiresAt,
		&j.ViewCount, &j.Error, &createdAt, &updatedAt)
	if err != nil {
		return jobs.Job{}, err
	}
	if err := json.Unmarshal([]byte(opts), &j.Options); err != nil {
		return jobs.Job{}, fmt.Errorf("decode options of job %s: %w", j.ID, err)
	}
	j.Method = jobs.Method(method)
	j.Status = jobs.Status(status)
	j.TotalAmount = core.Money{Cents: totalCents}
	j.ShareToken = shareToken.String
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64).UTC()
		j.ExpiresAt = &t
	}
	j.CreatedAt = time.Unix(0, createdAt).UTC()
	j.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return j, nil
}

func encodeOptions(o export.Options) (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j jobs.Job) error {
	opts, err := encodeOptions(j.Options)
	if err != nil {
		return err
	}
	var shareToken sql.NullString
	if j.ShareToken != "" {
		shareToken = sql.NullString{String: j.ShareToken, Valid: true}
	}
	var expiresAt sql.NullInt64
	if j.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: j.ExpiresAt.UnixNano(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO export_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Method), j.Destination, j.Template, opts, string(j.Status),
		j.RecordCount, j.TotalAmount.Cents, j.Artifact, shareToken, expiresAt,
		j.ViewCount, j.Error, j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano())
	if err != nil {
		return unavailable("create job "+j.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	return s.oneJob(row, "get job "+id)
}

func (s *SQLiteStore) GetJobByShareToken(ctx context.Context, token string) (jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE share_token = ?`, token)
	return s.oneJob(row, "get shared job")
}

func (s *SQLiteStore) oneJob(row rowScanner, op string) (jobs.Job, error) {
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.Job{}, unavailable(op, err)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM export_jobs
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("list jobs", err)
	}
	defer rows.Close()

	out := []jobs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, unavailable("scan job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list jobs", err)
	}
	return out, nil
}

// TransitionJob reads, checks and writes the status inside one transaction.
func (s *SQLiteStore) TransitionJob(ctx context.Context, id string, to jobs.Status, u jobs.Update, at time.Time) (jobs.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jobs.Job{}, unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := s.oneJob(row, "get job "+id)
	if err != nil {
		return jobs.Job{}, err
	}
	if err := j.Apply(to, u, at); err != nil {
		return jobs.Job{}, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE export_jobs
		SET status = ?, artifact = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(j.Status), j.Artifact, j.Error, j.UpdatedAt.UnixNano(), id)
	if err != nil {
		return jobs.Job{}, unavailable("update job "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return jobs.Job{}, unavailable("commit transaction", err)
	}
	return j, nil
}

// ClaimJob sets processing only while the row still carries the status and
// updated_at the caller read.
func (s *SQLiteStore) ClaimJob(ctx context.Context, seen jobs.Job, at time.Time) (jobs.Job, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE export_jobs
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND updated_at = ? AND status IN (?, ?)`,
		string(jobs.StatusProcessing), at.UnixNano(),
		seen.ID, string(seen.Status), seen.UpdatedAt.UnixNano(),
		string(jobs.StatusPending), string(jobs.StatusProcessing))
	if err != nil {
		return jobs.Job{}, unavailable("claim job "+seen.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return jobs.Job{}, unavailable("claim job "+seen.ID, err)
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, seen.ID); err != nil {
			return jobs.Job{}, err
		}
		return jobs.Job{}, jobs.ErrClaimed
	}
	return s.GetJob(ctx, seen.ID)
}

func (s *SQLiteStore) IncrementViews(ctx context.Context, id string, at time.Time) (jobs.Job, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE export_jobs
		SET view_count = view_count + 1, updated_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return jobs.Job{}, unavailable("count view "+id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return s.GetJob(ctx, id)
}
