package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rushteam/recpipe/core"
)

const registrySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status      TEXT NOT NULL,
	rows_train  INTEGER NOT NULL DEFAULT 0,
	rows_test   INTEGER NOT NULL DEFAULT 0,
	cf_params   TEXT NOT NULL DEFAULT '',
	cf_rmse     REAL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// RunRecord 运行记录
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	RowsTrain  int
	RowsTest   int
	CFParams   string

	// CFRMSE 未完成协同过滤阶段时为 nil
	CFRMSE *float64
	Error  string
}

// Registry 运行记录表，存放在产物根目录下的 runs.db
type Registry struct {
	conn *sql.DB
	Path string
}

// OpenRegistry 打开（必要时创建）SQLite 运行记录库，启用 WAL
func OpenRegistry(path string) (*Registry, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.NewArtifactError(path, fmt.Errorf("opening database: %w", err))
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, core.NewArtifactError(path, fmt.Errorf("setting WAL mode: %w", err))
	}
	if _, err := conn.Exec(registrySchema); err != nil {
		conn.Close()
		return nil, core.NewArtifactError(path, fmt.Errorf("creating schema: %w", err))
	}
	return &Registry{conn: conn, Path: path}, nil
}

func (r *Registry) Close() error {
	return r.conn.Close()
}

// Record 写入或覆盖一条运行记录
func (r *Registry) Record(ctx context.Context, rec RunRecord) error {
	var rmse any
	if rec.CFRMSE != nil {
		rmse = *rec.CFRMSE
	}
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, status, rows_train, rows_test, cf_params, cf_rmse, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			rows_train = excluded.rows_train,
			rows_test = excluded.rows_test,
			cf_params = excluded.cf_params,
			cf_rmse = excluded.cf_rmse,
			error = excluded.error`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.Status, rec.RowsTrain, rec.RowsTest, rec.CFParams, rmse, rec.Error,
	)
	if err != nil {
		return core.NewArtifactError(r.Path, fmt.Errorf("recording run %s: %w", rec.ID, err))
	}
	return nil
}

// List 按开始时间倒序返回最近的 limit 条记录，limit<=0 返回全部
func (r *Registry) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, rows_train, rows_test, cf_params, cf_rmse, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, core.NewArtifactError(r.Path, fmt.Errorf("listing runs: %w", err))
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec               RunRecord
			started, finished string
			rmse              sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Status, &rec.RowsTrain, &rec.RowsTest,
			&rec.CFParams, &rmse, &rec.Error); err != nil {
			return nil, core.NewArtifactError(r.Path, fmt.Errorf("scanning run: %w", err))
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if rmse.Valid {
			v := rmse.Float64
			rec.CFRMSE = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewArtifactError(r.Path, err)
	}
	return out, nil
}
