package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

const runColumns = `
	id, sequence, playlist_ref, started_at, elapsed_ms, desired,
	matched_library, matched_staging, missing, downloaded, timed_out,
	no_match, skipped, cleared, organized, duplicates, copy_failures,
	tagged, swept, playlist_entries, deadline_exceeded, errors
`

// RunRepository stores [models.RunReport] rows.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a report, assigning its sequence and, when empty, its ID.
func (r *RunRepository) Create(run *models.RunReport) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		run.ID,
		sequence,
		run.PlaylistRef,
		run.StartedAt.UTC(),
		run.Elapsed.Milliseconds(),
		run.Desired,
		run.MatchedLibrary,
		run.MatchedStaging,
		run.Missing,
		run.Downloaded,
		run.TimedOut,
		run.NoMatch,
		run.Skipped,
		run.Cleared,
		run.Organized,
		run.Duplicates,
		run.CopyFailures,
		run.Tagged,
		run.Swept,
		run.PlaylistEntries,
		run.DeadlineExceeded,
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.Sequence = sequence
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.RunReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// Latest returns the most recent run.
func (r *RunRepository) Latest() (*models.RunReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query))
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (r *RunRepository) List(limit int) ([]*models.RunReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.RunReport{}
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and returns the number removed.
func (r *RunRepository) Prune(keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidArgument)
	}
	result, err := r.db.Exec(`
		DELETE FROM runs
		WHERE sequence NOT IN (SELECT sequence FROM runs ORDER BY sequence DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scan(row scanner) (*models.RunReport, error) {
	var (
		run        models.RunReport
		startedAt  time.Time
		elapsedMS  int64
		errorsJSON string
	)

	err := row.Scan(
		&run.ID, &run.Sequence, &run.PlaylistRef, &startedAt, &elapsedMS, &run.Desired,
		&run.MatchedLibrary, &run.MatchedStaging, &run.Missing, &run.Downloaded, &run.TimedOut,
		&run.NoMatch, &run.Skipped, &run.Cleared, &run.Organized, &run.Duplicates, &run.CopyFailures,
		&run.Tagged, &run.Swept, &run.PlaylistEntries, &run.DeadlineExceeded, &errorsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = startedAt
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode run errors: %w", err)
	}
	if len(run.Errors) == 0 {
		run.Errors = nil
	}
	return &run, nil
}
