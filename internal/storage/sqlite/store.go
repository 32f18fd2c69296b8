// Package sqlite stores run checkpoints in SQLite. Each run keeps one row in
// runs and one row per effect node in effect_nodes, linked to its parent and
// ordered by position.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/replaykit/internal/replay"
	"github.com/louisbranch/replaykit/internal/storage/sqlite/migrations"

	_ "modernc.org/sqlite"
)

var (
	// ErrPathRequired indicates a missing database path.
	ErrPathRequired = errors.New("storage path is required")
	// ErrRunIDRequired indicates a missing run id.
	ErrRunIDRequired = errors.New("run id is required")
	// ErrCorruptTree indicates effect rows that do not form a tree.
	ErrCorruptTree = errors.New("corrupt effect tree")
)

// Store is a SQLite-backed replay.CheckpointStore.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the SQLite database at path and applies the checkpoint schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return newStore(sqlDB), nil
}

func newStore(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

// Close closes the underlying database. It is safe on a nil store.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads the checkpoint of runID and rebuilds its effect tree.
func (s *Store) Get(ctx context.Context, runID string) (replay.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return replay.Checkpoint{}, err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return replay.Checkpoint{}, ErrRunIDRequired
	}

	checkpoint := replay.Checkpoint{RunID: runID}
	var state string
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT state, digest, updated_at FROM runs WHERE run_id = ?", runID,
	).Scan(&state, &checkpoint.Digest, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	if err != nil {
		return replay.Checkpoint{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	checkpoint.State = []byte(state)
	checkpoint.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT node_id, parent_id, position, result FROM effect_nodes WHERE run_id = ? ORDER BY node_id", runID,
	)
	if err != nil {
		return replay.Checkpoint{}, fmt.Errorf("list effect nodes %s: %w", runID, err)
	}
	defer rows.Close()

	var nodes []nodeRow
	for rows.Next() {
		var row nodeRow
		var result string
		if err := rows.Scan(&row.id, &row.parent, &row.position, &result); err != nil {
			return replay.Checkpoint{}, fmt.Errorf("scan effect node %s: %w", runID, err)
		}
		row.result = []byte(result)
		nodes = append(nodes, row)
	}
	if err := rows.Err(); err != nil {
		return replay.Checkpoint{}, fmt.Errorf("read effect nodes %s: %w", runID, err)
	}

	checkpoint.Effects, err = buildTree(nodes)
	if err != nil {
		return replay.Checkpoint{}, fmt.Errorf("rebuild effects %s: %w", runID, err)
	}
	return checkpoint, nil
}

// Save replaces the checkpoint of the run in a single transaction.
func (s *Store) Save(ctx context.Context, checkpoint replay.Checkpoint) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	runID := strings.TrimSpace(checkpoint.RunID)
	if runID == "" {
		return ErrRunIDRequired
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", runID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, state, digest, effect_count, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    state = excluded.state,
    digest = excluded.digest,
    effect_count = excluded.effect_count,
    updated_at = excluded.updated_at`,
		runID, string(checkpoint.State), checkpoint.Digest, effect.Count(checkpoint.Effects), toMillis(checkpoint.UpdatedAt),
	); err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM effect_nodes WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear effect nodes %s: %w", runID, err)
	}
	for _, row := range flatten(checkpoint.Effects) {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO effect_nodes (run_id, node_id, parent_id, position, result) VALUES (?, ?, ?, ?, ?)",
			runID, row.id, row.parent, row.position, string(row.result),
		); err != nil {
			return fmt.Errorf("save effect node %s/%d: %w", runID, row.id, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", runID, err)
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
