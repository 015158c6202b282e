package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ytdl-api/internal/apperr"
	"ytdl-api/internal/models"
)

const createJobsTable = `CREATE TABLE IF NOT EXISTS download_jobs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	url         TEXT NOT NULL,
	format      TEXT NOT NULL,
	filename    TEXT,
	progress    DOUBLE PRECISION NOT NULL DEFAULT 0,
	file_path   TEXT,
	size_mb     DOUBLE PRECISION,
	error       TEXT,
	error_code  TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
)`

const selectJobColumns = `SELECT id, status, url, format, filename, progress, file_path, size_mb, error, error_code, started_at, finished_at FROM download_jobs`

// PostgresStore shares job records between instances.
type PostgresStore struct {
	DB *sql.DB
}

// OpenPostgres connects with lib/pq, retrying a few times while the database
// comes up, and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createJobsTable); err != nil {
		return fmt.Errorf("create download_jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.DownloadJob, error) {
	row := s.DB.QueryRowContext(ctx, selectJobColumns+` WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DownloadJob{}, apperr.New(apperr.KindNotFound, "download not found")
	}
	if err != nil {
		return models.DownloadJob{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresStore) Put(ctx context.Context, job models.DownloadJob) error {
	query := `INSERT INTO download_jobs (id, status, url, format, filename, progress, file_path, size_mb, error, error_code, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			file_path = EXCLUDED.file_path,
			size_mb = EXCLUDED.size_mb,
			error = EXCLUDED.error,
			error_code = EXCLUDED.error_code,
			finished_at = EXCLUDED.finished_at`

	_, err := s.DB.ExecContext(ctx, query,
		job.ID, string(job.Status), job.URL, job.Format,
		nullString(job.Filename), job.Progress, nullString(job.FilePath), job.SizeMB,
		nullString(job.Error), nullString(job.ErrorCode), job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM download_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.DownloadJob, error) {
	rows, err := s.DB.QueryContext(ctx, selectJobColumns+` ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over jobs: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (models.DownloadJob, error) {
	var (
		job                                   models.DownloadJob
		status                                string
		filename, filePath, errMsg, errorCode sql.NullString
		sizeMB                                sql.NullFloat64
		finishedAt                            sql.NullTime
	)
	err := row.Scan(&job.ID, &status, &job.URL, &job.Format, &filename, &job.Progress,
		&filePath, &sizeMB, &errMsg, &errorCode, &job.StartedAt, &finishedAt)
	if err != nil {
		return models.DownloadJob{}, err
	}

	job.Status = models.JobStatus(status)
	job.Filename = filename.String
	job.FilePath = filePath.String
	job.Error = errMsg.String
	job.ErrorCode = errorCode.String
	if sizeMB.Valid {
		size := sizeMB.Float64
		job.SizeMB = &size
	}
	if finishedAt.Valid {
		at := finishedAt.Time
		job.FinishedAt = &at
	}
	return job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
