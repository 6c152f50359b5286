package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/essay-workshop/internal/domain/runerrors"
)

type RunErrorRepository struct {
	db *sql.DB
}

func NewRunErrorRepository(db *sql.DB) *RunErrorRepository { return &RunErrorRepository{db: db} }

func (r *RunErrorRepository) Save(ctx context.Context, e *domain.RunError) error {
	const q = `
INSERT INTO essay_run_errors
  (tenant_id, analysis_id, stage, analyzer, attempts, message, details_json, created_at)
VALUES (?,?,?,?,?,?,?,?)
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), stringOrDash(e.AnalysisID), stringOrDash(e.Stage), stringOrDash(e.Analyzer),
		e.Attempts, stringOrDash(e.Message), jsonOrWrap(e.DetailsJSON), created,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *RunErrorRepository) ListByAnalysis(ctx context.Context, tenant string, analysisID string, limit int) ([]*domain.RunError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, analysis_id, stage, analyzer, attempts, message, details_json, created_at
FROM essay_run_errors
WHERE tenant_id = ? AND analysis_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, analysisID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.RunError{}
	for rows.Next() {
		var e domain.RunError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AnalysisID, &e.Stage, &e.Analyzer, &e.Attempts, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Stage = dashToEmpty(e.Stage)
		e.Analyzer = dashToEmpty(e.Analyzer)
		out = append(out, &e)
	}
	return out, rows.Err()
}
