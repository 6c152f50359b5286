package postgres

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
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(e.TenantID), stringOrDash(e.AnalysisID), stringOrDash(e.Stage), stringOrDash(e.Analyzer),
		e.Attempts, stringOrDash(e.Message), jsonOrWrap(e.DetailsJSON), created,
	).Scan(&e.ID)
}

func (r *RunErrorRepository) ListByAnalysis(ctx context.Context, tenant string, analysisID string, limit int) ([]*domain.RunError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, analysis_id, stage, analyzer, attempts, message, details_json, created_at
FROM essay_run_errors
WHERE tenant_id=$1 AND analysis_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, analysisID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.RunError{}
	for rows.Next() {
		var e domain.RunError
		var created time.Time
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AnalysisID, &e.Stage, &e.Analyzer, &e.Attempts, &e.Message, &e.DetailsJSON, &created); err != nil {
			return nil, err
		}
		e.Stage = dashToEmpty(e.Stage)
		e.Analyzer = dashToEmpty(e.Analyzer)
		e.CreatedAt = created
		out = append(out, &e)
	}
	return out, rows.Err()
}
