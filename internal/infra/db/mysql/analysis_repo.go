package mysql

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

// Save insert/update an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO essay_analyses
(id, tenant_id, essay_type, word_count, aggregate, percentile, tier,
 degraded, report_url, essay_text, result_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 aggregate=VALUES(aggregate), percentile=VALUES(percentile), tier=VALUES(tier),
 degraded=VALUES(degraded), report_url=VALUES(report_url), result_json=VALUES(result_json);
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), string(a.EssayType), a.WordCount, a.Aggregate, a.Percentile, a.Tier.String(),
		a.Degraded, stringOrDash(a.ReportURL), a.Text, result, created,
	)
	if err != nil {
		return fmt.Errorf("saving analysis %s: %w", a.ID, err)
	}
	return nil
}

// Get by ID + Tenant
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	q := `SELECT ` + analysisColumns + `
FROM essay_analyses
WHERE tenant_id=? AND id=? LIMIT 1;`
	a, err := scanRecord(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Paginate with offset + limit (classic pagination), newest first
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	page, pageSize = domain.Normalize(page, pageSize)
	offset := (page - 1) * pageSize

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM essay_analyses WHERE tenant_id=?`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting analyses: %w", err)
	}

	q := `SELECT ` + analysisColumns + `
FROM essay_analyses
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	data := []*domain.Record{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
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
	)
	if err := row.Scan(
		&a.ID, &a.TenantID, &essayType, &a.WordCount, &a.Aggregate, &a.Percentile, &tier,
		&a.Degraded, &reportURL, &a.Text, &a.Result, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.EssayType = essay.EssayType(essayType)
	a.Tier = parseTier(tier)
	a.ReportURL = dashToEmpty(reportURL)
	return &a, nil
}
