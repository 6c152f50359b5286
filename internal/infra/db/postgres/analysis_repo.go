package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/essay-workshop/internal/domain/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, tenant_id, essay_type, word_count, aggregate, percentile, tier,
       degraded, report_url, essay_text, result_json, created_at`

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO essay_analyses
  (id, tenant_id, essay_type, word_count, aggregate, percentile, tier,
   degraded, report_url, essay_text, result_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  aggregate=EXCLUDED.aggregate,
  percentile=EXCLUDED.percentile,
  tier=EXCLUDED.tier,
  degraded=EXCLUDED.degraded,
  report_url=EXCLUDED.report_url,
  result_json=EXCLUDED.result_json;
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), string(a.EssayType), a.WordCount, a.Aggregate, a.Percentile, a.Tier.String(),
		a.Degraded, stringOrDash(a.ReportURL), a.Text, result, createdAt,
	)
	if err != nil {
		return fmt.Errorf("saving analysis %s: %w", a.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound when the row does not exist
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	q := `SELECT ` + analysisColumns + `
FROM essay_analyses
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	a, err := scanRecord(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize = domain.Normalize(page, pageSize)
	offset := (page - 1) * pageSize

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM essay_analyses WHERE tenant_id=$1`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting analyses: %w", err)
	}

	q := `SELECT ` + analysisColumns + `
FROM essay_analyses
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	data := []*domain.Record{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return domain.PaginatedResult{}, err
		}
		data = append(data, a)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, err
	}
	return domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: domain.TotalPages(total, pageSize),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var (
		a         domain.Record
		essayType string
		tier      string
		reportURL string
		created   time.Time
	)
	if err := row.Scan(
		&a.ID, &a.TenantID, &essayType, &a.WordCount, &a.Aggregate, &a.Percentile, &tier,
		&a.Degraded, &reportURL, &a.Text, &a.Result, &created,
	); err != nil {
		return nil, err
	}
	a.EssayType = essay.EssayType(essayType)
	a.Tier = parseTier(tier)
	a.ReportURL = dashToEmpty(reportURL)
	a.CreatedAt = created
	return &a, nil
}
