package knowledge_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/internal/knowledge"
)

func TestOpenDB_MigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")

	db, err := knowledge.OpenDB(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Health(context.Background()))
	require.NoError(t, db.Close())

	// Reopening runs the same migrations against the existing file.
	db, err = knowledge.OpenDB(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Health(context.Background()))
}

func TestDB_WithTxRollsBackOnError(t *testing.T) {
	db, err := knowledge.OpenDB(filepath.Join(t.TempDir(), "knowledge.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO heartbeat_runs (id, user_id, started_at, finished_at, findings, tasks_created)
			 VALUES ('hb-1', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 0, 0)`)
		if err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM heartbeat_runs`).Scan(&count)
	})
	require.NoError(t, err)
	assert.Zero(t, count, "rolled-back insert should not be visible")
}
