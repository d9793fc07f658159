package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"unflatten/internal/matcher"
	"unflatten/internal/restore"
)

// ErrNotFound is returned when no run matches an identifier.
var ErrNotFound = errors.New("run not found")

// State is the terminal classification of a flattened file.
type State string

const (
	StateUnique    State = "unique"
	StateResolved  State = "resolved"
	StateAmbiguous State = "ambiguous"
	StateUnmatched State = "unmatched"
)

// ParseState validates a state name. The empty string selects all states.
func ParseState(value string) (State, error) {
	switch s := State(strings.ToLower(strings.TrimSpace(value))); s {
	case "", StateUnique, StateResolved, StateAmbiguous, StateUnmatched:
		return s, nil
	default:
		return "", fmt.Errorf("unknown state %q (want unique, resolved, ambiguous, or unmatched)", value)
	}
}

// Run describes one reconciliation run.
type Run struct {
	ID              string          `json:"id"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	FlattenedRoot   string          `json:"flattened_root"`
	OriginalRoot    string          `json:"original_root"`
	OutputRoot      string          `json:"output_root,omitempty"`
	Executed        bool            `json:"executed"`
	Strategy        []string        `json:"strategy"`
	TextThreshold   float64         `json:"text_threshold"`
	VisualThreshold float64         `json:"visual_threshold"`
	StrictUnique    bool            `json:"strict_unique"`
	Counts          matcher.Counts  `json:"counts"`
	Restore         restore.Summary `json:"restore"`
}

// Entry is one stored classification.
type Entry struct {
	FlattenedPath string   `json:"flattened_path"`
	State         State    `json:"state"`
	OriginalPath  string   `json:"original_path,omitempty"`
	Method        string   `json:"method,omitempty"`
	Confidence    float64  `json:"confidence"`
	PageCount     int      `json:"page_count"`
	Candidates    []string `json:"candidates,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// Entries flattens a result into per-file rows ordered by flattened path.
func Entries(result matcher.Result) []Entry {
	entries := make([]Entry, 0, result.Counts().Total)
	for _, m := range result.Unique {
		entries = append(entries, matchEntry(StateUnique, m))
	}
	for _, m := range result.Resolved {
		entries = append(entries, matchEntry(StateResolved, m))
	}
	for _, a := range result.Ambiguous {
		entries = append(entries, Entry{
			FlattenedPath: a.FlattenedPath,
			State:         StateAmbiguous,
			OriginalPath:  a.BestPath,
			Method:        string(a.BestKind),
			Confidence:    a.BestScore,
			PageCount:     a.PageCount,
			Candidates:    a.Candidates,
		})
	}
	for _, u := range result.Unmatched {
		entries = append(entries, Entry{
			FlattenedPath: u.FlattenedPath,
			State:         StateUnmatched,
			PageCount:     u.PageCount,
			Reason:        string(u.Reason),
		})
	}
	sortEntries(entries)
	return entries
}

func matchEntry(state State, m matcher.MatchResult) Entry {
	return Entry{
		FlattenedPath: m.FlattenedPath,
		State:         state,
		OriginalPath:  m.OriginalPath,
		Method:        string(m.Method),
		Confidence:    m.Confidence,
		PageCount:     m.PageCount,
	}
}

// SaveRun stores a run and its per-file classifications in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, result matcher.Result) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	entries := Entries(result)
	return withBusyRetry(ctx, func() error {
		return s.saveRunTx(ctx, run, entries)
	})
}

func (s *Store) saveRunTx(ctx context.Context, run Run, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, started_at, finished_at, flattened_root, original_root, output_root, executed,
		strategy, text_threshold, visual_threshold, strict_unique,
		unique_count, resolved_count, ambiguous_count, unmatched_count,
		copied_count, copy_failed_count, copy_skipped_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.FlattenedRoot,
		run.OriginalRoot,
		run.OutputRoot,
		boolToInt(run.Executed),
		strings.Join(run.Strategy, ","),
		run.TextThreshold,
		run.VisualThreshold,
		boolToInt(run.StrictUnique),
		run.Counts.Unique,
		run.Counts.Resolved,
		run.Counts.Ambiguous,
		run.Counts.Unmatched,
		run.Restore.Copied,
		run.Restore.Failed,
		run.Restore.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (
		run_id, flattened_path, state, original_path, method, confidence, page_count, candidates, reason
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		candidates, err := json.Marshal(nonNil(e.Candidates))
		if err != nil {
			return fmt.Errorf("encode candidates: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, e.FlattenedPath, string(e.State), e.OriginalPath,
			e.Method, e.Confidence, e.PageCount, string(candidates), e.Reason); err != nil {
			return fmt.Errorf("insert result %s: %w", e.FlattenedPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, flattened_root, original_root, output_root, executed,
	strategy, text_threshold, visual_threshold, strict_unique,
	unique_count, resolved_count, ambiguous_count, unmatched_count,
	copied_count, copy_failed_count, copy_skipped_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		started, finished string
		executed, strict  int
		strategy          string
	)
	err := row.Scan(&run.ID, &started, &finished, &run.FlattenedRoot, &run.OriginalRoot, &run.OutputRoot, &executed,
		&strategy, &run.TextThreshold, &run.VisualThreshold, &strict,
		&run.Counts.Unique, &run.Counts.Resolved, &run.Counts.Ambiguous, &run.Counts.Unmatched,
		&run.Restore.Copied, &run.Restore.Failed, &run.Restore.Skipped)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Executed = executed != 0
	run.StrictUnique = strict != 0
	if strategy != "" {
		run.Strategy = strings.Split(strategy, ",")
	}
	run.Counts.Total = run.Counts.Unique + run.Counts.Resolved + run.Counts.Ambiguous + run.Counts.Unmatched
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 lists all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose identifier equals or starts with id. A prefix
// matching several runs is an error.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, errors.New("run id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id LIMIT 2`,
		id, len(id), id)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == id {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Results returns the stored classifications of a run, optionally filtered
// by state, ordered by flattened path.
func (s *Store) Results(ctx context.Context, runID string, state State) ([]Entry, error) {
	query := `SELECT flattened_path, state, original_path, method, confidence, page_count, candidates, reason
		FROM results WHERE run_id = ?`
	args := []any{runID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY flattened_path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			candidates string
		)
		if err := rows.Scan(&e.FlattenedPath, &e.State, &e.OriginalPath, &e.Method, &e.Confidence,
			&e.PageCount, &candidates, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(candidates), &e.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates for %s: %w", e.FlattenedPath, err)
		}
		if len(e.Candidates) == 0 {
			e.Candidates = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	var removed int64
	err := withBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(removed), nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FlattenedPath < entries[j].FlattenedPath
	})
}
