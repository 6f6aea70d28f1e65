package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/stream"
)

// Run outcomes.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Report is the ledger entry of one run.
type Report struct {
	Stats   join.Stats   `json:"stats"`
	Options join.Options `json:"options"`
	Status  string       `json:"status"`
	Error   string       `json:"error,omitempty"`
}

// RecordRun stores r and its per-stream counters in one transaction.
// Recording the same run ID twice is an error.
func (s *Store) RecordRun(ctx context.Context, r Report) error {
	if r.Stats.RunID == "" {
		return fmt.Errorf("record run: empty run ID")
	}
	opts, err := json.Marshal(r.Options)
	if err != nil {
		return fmt.Errorf("record run: marshal options: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	st := r.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, streams, groups_emitted, anchor_only, rows_written,
		 rejected_existence, rejected_cardinality, rejected_frequency,
		 stop_reason, options, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		st.RunID, st.Streams, st.GroupsEmitted, st.AnchorOnly, st.RowsWritten,
		st.RejectedExistence, st.RejectedCardinality, st.RejectedFrequency,
		string(st.Stop), string(opts), r.Status, r.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", st.RunID, err)
	}

	for i, ps := range st.PerStream {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_streams
			(run_id, idx, name, lines, comment_lines, groups, rows, skipped_count, skipped_incomplete)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			st.RunID, i, ps.Name, ps.Lines, ps.CommentLines, ps.Groups, ps.Rows,
			ps.SkippedCount, ps.SkippedIncomplete,
		)
		if err != nil {
			return fmt.Errorf("record run %s stream %d: %w", st.RunID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", st.RunID, err)
	}
	return nil
}

// Runs returns every stored report in insertion order.
func (s *Store) Runs(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, streams, groups_emitted, anchor_only, rows_written,
		       rejected_existence, rejected_cardinality, rejected_frequency,
		       stop_reason, options, status, error
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range reports {
		ps, err := s.runStreams(ctx, reports[i].Stats.RunID)
		if err != nil {
			return nil, err
		}
		reports[i].Stats.PerStream = ps
	}
	return reports, nil
}

// Run returns the report for runID, or sql.ErrNoRows.
func (s *Store) Run(ctx context.Context, runID string) (Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, streams, groups_emitted, anchor_only, rows_written,
		       rejected_existence, rejected_cardinality, rejected_frequency,
		       stop_reason, options, status, error
		FROM runs
		WHERE run_id = ?
	`, runID)
	r, err := scanRun(row)
	if err != nil {
		return Report{}, err
	}
	if r.Stats.PerStream, err = s.runStreams(ctx, runID); err != nil {
		return Report{}, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Report, error) {
	var (
		r    Report
		stop string
		opts string
	)
	st := &r.Stats
	err := sc.Scan(&st.RunID, &st.Streams, &st.GroupsEmitted, &st.AnchorOnly, &st.RowsWritten,
		&st.RejectedExistence, &st.RejectedCardinality, &st.RejectedFrequency,
		&stop, &opts, &r.Status, &r.Error)
	if err == sql.ErrNoRows {
		return Report{}, err
	}
	if err != nil {
		return Report{}, fmt.Errorf("scan run: %w", err)
	}
	st.Stop = join.StopReason(stop)
	if err := json.Unmarshal([]byte(opts), &r.Options); err != nil {
		return Report{}, fmt.Errorf("unmarshal options of run %s: %w", st.RunID, err)
	}
	return r, nil
}

func (s *Store) runStreams(ctx context.Context, runID string) ([]join.StreamStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, lines, comment_lines, groups, rows, skipped_count, skipped_incomplete
		FROM run_streams
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query streams of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []join.StreamStats
	for rows.Next() {
		var (
			name string
			st   stream.Stats
		)
		if err := rows.Scan(&name, &st.Lines, &st.CommentLines, &st.Groups, &st.Rows,
			&st.SkippedCount, &st.SkippedIncomplete); err != nil {
			return nil, fmt.Errorf("scan stream of run %s: %w", runID, err)
		}
		out = append(out, join.StreamStats{Name: name, Stats: st})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams of run %s: %w", runID, err)
	}
	return out, nil
}
