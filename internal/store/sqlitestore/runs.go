package sqlitestore

import (
	"context"
	"fmt"
	"time"
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is the persisted summary of one engine run.
// Report holds the full JSON report as produced by the CLI.
type Run struct {
	ID             string    `json:"id"`
	Command        string    `json:"command"`
	Target         string    `json:"target"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DryRun         bool      `json:"dry_run"`
	Updated        int       `json:"updated"`
	AlreadyCorrect int       `json:"already_correct"`
	NotFound       int       `json:"not_found"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	Report         string    `json:"-"`
}

// SaveRun records a run. Saving the same ID twice is an error.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs (
			id, command, target, started_at, finished_at, dry_run,
			updated, already_correct, not_found, skipped, failed, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Command, r.Target,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout),
		boolToInt(r.DryRun),
		r.Updated, r.AlreadyCorrect, r.NotFound, r.Skipped, r.Failed,
		r.Report,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, command, target, started_at, finished_at, dry_run,
		       updated, already_correct, not_found, skipped, failed, report
		FROM reconcile_runs
		ORDER BY started_at DESC, id DESC COLLATE BINARY
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			dryRun            int
		)
		if err := rows.Scan(
			&r.ID, &r.Command, &r.Target, &started, &finished, &dryRun,
			&r.Updated, &r.AlreadyCorrect, &r.NotFound, &r.Skipped, &r.Failed, &r.Report,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: parse started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s: parse finished_at: %w", r.ID, err)
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
