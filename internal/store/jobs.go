package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediabot/internal/services"
)

const jobColumns = "id, account_id, source_url, title, extractor, profile, state, duration_seconds, size_bytes, watermarked, used_bonus, error_kind, error_message, created_at, updated_at, finished_at"

// JobRecord is the persisted history row for one job.
type JobRecord struct {
	ID              string
	AccountID       int64
	SourceURL       string
	Title           string
	Extractor       string
	Profile         string
	State           string
	DurationSeconds int
	SizeBytes       int64
	Watermarked     bool
	UsedBonus       bool
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinishedAt      *time.Time
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	AccountID int64
	State     string
	Limit     int
}

// SaveJob inserts or replaces the history row for rec.ID.
func (s *Store) SaveJob(ctx context.Context, rec JobRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return services.Wrap(services.ErrValidation, "store", "save job", "job id is required", nil)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title, extractor = excluded.extractor, profile = excluded.profile,
             state = excluded.state, duration_seconds = excluded.duration_seconds,
             size_bytes = excluded.size_bytes, watermarked = excluded.watermarked,
             used_bonus = excluded.used_bonus, error_kind = excluded.error_kind,
             error_message = excluded.error_message, updated_at = excluded.updated_at,
             finished_at = excluded.finished_at`,
		rec.ID,
		rec.AccountID,
		rec.SourceURL,
		nullableString(rec.Title),
		nullableString(rec.Extractor),
		nullableString(rec.Profile),
		rec.State,
		rec.DurationSeconds,
		rec.SizeBytes,
		boolToInt(rec.Watermarked),
		boolToInt(rec.UsedBonus),
		nullableString(rec.ErrorKind),
		nullableString(rec.ErrorMessage),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		nullableTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetJob fetches a job history row.
func (s *Store) GetJob(ctx context.Context, id string) (JobRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, services.Wrap(services.ErrNotFound, "store", "get job", id, nil)
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

// ListJobs returns the newest jobs matching filter.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]JobRecord, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.AccountID != 0 {
		clauses = append(clauses, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if state := strings.TrimSpace(filter.State); state != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, state)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, rec)
	}
	return jobs, rows.Err()
}

// JobStateCounts counts jobs per state created at or after since.
func (s *Store) JobStateCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(1) FROM jobs WHERE created_at >= ? GROUP BY state`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("job state counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan job state count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// MarkInterrupted fails every job left in a non-terminal state, which only
// happens when the daemon exited mid-job.
func (s *Store) MarkInterrupted(ctx context.Context, terminal []string) (int64, error) {
	if len(terminal) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terminal)), ",")
	now := formatTime(time.Now())
	args := []any{now, now}
	for _, state := range terminal {
		args = append(args, state)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = 'failed', error_kind = 'interrupted',
             error_message = 'daemon stopped before completion', updated_at = ?, finished_at = ?
         WHERE state NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (JobRecord, error) {
	var (
		rec          JobRecord
		title        sql.NullString
		extractor    sql.NullString
		profile      sql.NullString
		watermarked  int
		usedBonus    int
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.SourceURL,
		&title,
		&extractor,
		&profile,
		&rec.State,
		&rec.DurationSeconds,
		&rec.SizeBytes,
		&watermarked,
		&usedBonus,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return JobRecord{}, err
	}
	rec.Title = title.String
	rec.Extractor = extractor.String
	rec.Profile = profile.String
	rec.Watermarked = watermarked != 0
	rec.UsedBonus = usedBonus != 0
	rec.ErrorKind = errorKind.String
	rec.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	rec.FinishedAt = parseOptionalTime(finishedRaw.String)
	return rec, nil
}
